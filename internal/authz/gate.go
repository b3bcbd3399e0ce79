package authz

import "fieldserve/internal/model"

// Operation names a capability the gate can grant or deny.
type Operation string

const (
	OpCreate             Operation = "create"
	OpEditPending        Operation = "edit_pending"
	OpEditAdminFields    Operation = "edit_admin_fields"
	OpTransition         Operation = "transition"
	OpAssign             Operation = "assign"
	OpAuthorDeliverables Operation = "author_deliverables"
	OpRead               Operation = "read"
	OpList               Operation = "list"
	OpExport             Operation = "export"
	OpAggregate          Operation = "aggregate"
	OpManageTechnicians  Operation = "manage_technicians"
)

// capabilities is the single declarative role table. Record-scoped
// refinements (ownership, assignment, pending-only edits) live in Can.
var capabilities = map[model.Role]map[Operation]bool{
	model.RoleClient: {
		OpCreate:      true,
		OpEditPending: true,
		OpRead:        true,
		OpList:        true,
	},
	model.RoleAdmin: {
		OpEditAdminFields:   true,
		OpTransition:        true,
		OpAssign:            true,
		OpRead:              true,
		OpList:              true,
		OpExport:            true,
		OpAggregate:         true,
		OpManageTechnicians: true,
	},
	model.RoleTechnician: {
		OpEditAdminFields:    true,
		OpTransition:         true,
		OpAuthorDeliverables: true,
		OpRead:               true,
		OpList:               true,
	},
}

// Can reports whether actor may perform op, optionally against rec.
// A nil rec asks about the operation in general (create, list, aggregate);
// record-bound operations with a nil rec are denied.
func Can(actor model.Actor, op Operation, rec *model.Request) bool {
	if !capabilities[actor.Role][op] {
		return false
	}

	switch op {
	case OpCreate, OpList, OpAggregate, OpManageTechnicians:
		return true
	}
	if rec == nil {
		return false
	}

	switch actor.Role {
	case model.RoleClient:
		if rec.ClientID != actor.ID {
			return false
		}
		if op == OpEditPending {
			return rec.Status == model.StatusPending
		}
		return true
	case model.RoleTechnician:
		// Technicians only see and mutate records assigned to them; the
		// service layer resolves assignment before consulting the gate.
		return true
	case model.RoleAdmin:
		return true
	}
	return false
}

// CanSeeRecord reports whether an actor is allowed to know rec exists.
// Clients must never learn about other clients' records, so a denied read
// is reported as not-found upstream rather than unauthorized.
func CanSeeRecord(actor model.Actor, rec model.Request, assignedTechnician string) bool {
	switch actor.Role {
	case model.RoleAdmin:
		return true
	case model.RoleClient:
		return rec.ClientID == actor.ID
	case model.RoleTechnician:
		return assignedTechnician == actor.ID
	}
	return false
}
