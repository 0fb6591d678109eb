package security

import "strings"

// key builds a tenant-namespaced store key: security:{tenant}:{kind}:{id}.
// Colons inside the id are escaped so an attacker-controlled identifier
// cannot hop namespaces.
func key(tenantID, kind, id string) string {
	return "security:" + tenantID + ":" + kind + ":" + strings.ReplaceAll(id, ":", "\\:")
}
