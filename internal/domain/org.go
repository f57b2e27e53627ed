package domain

type OrganizationStatus string

const (
	OrganizationStatusApplying OrganizationStatus = "APPLYING"
	OrganizationStatusAccepted OrganizationStatus = "ACCEPTED"
	OrganizationStatusRejected OrganizationStatus = "REJECTED"
)

type Organization struct {
	ID     int32              `json:"id"`
	Name   string             `json:"name"`
	Status OrganizationStatus `json:"status"`
}

func (o *Organization) IsAccepted() bool {
	return o.Status == OrganizationStatusAccepted
}
