package domain

// Role is a role name issued by the identity provider.
type Role string

const (
	RoleMasterAdmin   Role = "master_admin"
	RoleOrgSuperAdmin Role = "org_super_admin"
	RolePropertyAdmin Role = "property_admin"
	RoleStaff         Role = "staff"
	RoleMST           Role = "mst"
	RoleTenant        Role = "tenant"
)

// SkillTechnical is the skill capability that lets resolver roles delete tickets.
const SkillTechnical = "technical"

// Actor is the caller of an engine operation.
type Actor struct {
	ID                  string
	Roles               []Role
	PropertyMemberships []string
	Skills              []string
}

// SystemActorID identifies mutations made by the engine itself.
const SystemActorID = "system"

// SystemActor returns the actor used for scheduled and automatic mutations.
func SystemActor() *Actor {
	return &Actor{ID: SystemActorID, Roles: []Role{RoleMasterAdmin}}
}

// Authenticated reports whether the actor carries an identity.
func (a *Actor) Authenticated() bool {
	return a != nil && a.ID != ""
}

// HasRole reports whether the actor holds any of the roles.
func (a *Actor) HasRole(roles ...Role) bool {
	if a == nil {
		return false
	}
	for _, have := range a.Roles {
		for _, want := range roles {
			if have == want {
				return true
			}
		}
	}
	return false
}

// HasSkill reports whether the actor carries the skill capability.
func (a *Actor) HasSkill(code string) bool {
	if a == nil {
		return false
	}
	for _, s := range a.Skills {
		if s == code {
			return true
		}
	}
	return false
}

// MemberOf reports whether the actor belongs to the property.
func (a *Actor) MemberOf(propertyID string) bool {
	if a == nil {
		return false
	}
	for _, p := range a.PropertyMemberships {
		if p == propertyID {
			return true
		}
	}
	return false
}

// IsAdminFor reports admin rights over the property. Master admins are global;
// org and property admins need membership of the property.
func (a *Actor) IsAdminFor(propertyID string) bool {
	if a.HasRole(RoleMasterAdmin) {
		return true
	}
	return a.HasRole(RoleOrgSuperAdmin, RolePropertyAdmin) && a.MemberOf(propertyID)
}

// IsResolverRole reports whether the actor holds a role that works tickets.
func (a *Actor) IsResolverRole() bool {
	return a.HasRole(RoleStaff, RoleMST)
}
