package config

type SecurityLevel int

const (
	SecurityPublic SecurityLevel = iota // No authentication
	SecurityAccess                      // Access token required
)

// EndpointSecurityConfig maps HTTP route names and gRPC full method names to
// their required security level
var EndpointSecurityConfig = map[string]SecurityLevel{
	"Health":  SecurityPublic,
	"Metrics": SecurityPublic,

	// gRPC operations surface
	"/grpc.health.v1.Health/Check":                                   SecurityPublic,
	"/grpc.health.v1.Health/Watch":                                   SecurityPublic,
	"/grpc.health.v1.Health/List":                                    SecurityPublic,
	"/grpc.reflection.v1.ServerReflection/ServerReflectionInfo":      SecurityAccess,
	"/grpc.reflection.v1alpha.ServerReflection/ServerReflectionInfo": SecurityAccess,

	// Connections - Access Protected
	"StartConnectionAsUser":  SecurityAccess,
	"StartConnectionAsOrg":   SecurityAccess,
	"GetConnection":          SecurityAccess,
	"ListProfileConnections": SecurityAccess,
	"ListOrgConnections":     SecurityAccess,
	"SelectUserRole":         SecurityAccess,
	"SelectOrgRole":          SecurityAccess,
	"PostMessage":            SecurityAccess,
	"ListMessages":           SecurityAccess,
	"MarkSeen":               SecurityAccess,
	"RevokeRole":             SecurityAccess,
	"CheckEligibility":       SecurityAccess,
	"InviteAnonymous":        SecurityAccess,
	"RedeemAnonymousInvite":  SecurityAccess,
}

// GetSecurityLevel returns the security level for a given route name
func GetSecurityLevel(route string) SecurityLevel {
	if level, exists := EndpointSecurityConfig[route]; exists {
		return level
	}
	// Default to highest security for unknown endpoints
	return SecurityAccess
}
