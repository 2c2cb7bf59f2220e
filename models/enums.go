package models

// Roles carried in the caller's token. Matches the role set of the wider
// operations platform; only a subset matters to the Tonight Board.
const (
	RoleOwnerAdmin = "OWNER_ADMIN"
	RoleManager    = "MANAGER"
	RoleSupervisor = "SUPERVISOR"
	RoleCleaner    = "CLEANER"
	RoleSales      = "SALES"
	RoleInspector  = "INSPECTOR"
)

// Route lifecycle
const (
	RouteStatusDraft     = "DRAFT"
	RouteStatusPublished = "PUBLISHED"
	RouteStatusCompleted = "COMPLETED"
)

// Stop lifecycle
const (
	StopStatusPending   = "PENDING"
	StopStatusArrived   = "ARRIVED"
	StopStatusCompleted = "COMPLETED"
	StopStatusSkipped   = "SKIPPED"
)

// Work ticket lifecycle. Tickets are the older scheduling representation;
// their statuses map onto stop statuses when projected into the board.
const (
	TicketStatusScheduled  = "SCHEDULED"
	TicketStatusInProgress = "IN_PROGRESS"
	TicketStatusCompleted  = "COMPLETED"
	TicketStatusVerified   = "VERIFIED"
	TicketStatusCanceled   = "CANCELED"
)

// Ticket assignment status
const (
	AssignmentStatusAssigned  = "ASSIGNED"
	AssignmentStatusWithdrawn = "WITHDRAWN"
)

// Execution source of a board stop: which representation owns its transitions.
const (
	ExecutionSourceRouteStop  = "route_stop"
	ExecutionSourceWorkTicket = "work_ticket"
)

// Callout lifecycle
const (
	CalloutStatusReported  = "REPORTED"
	CalloutStatusOffered   = "OFFERED"
	CalloutStatusCovered   = "COVERED"
	CalloutStatusUncovered = "UNCOVERED"
	CalloutStatusEscalated = "ESCALATED"
)

// Coverage offer lifecycle
const (
	OfferStatusPending  = "PENDING"
	OfferStatusAccepted = "ACCEPTED"
	OfferStatusExpired  = "EXPIRED"
)

// Payroll run lifecycle
const (
	RunStatusPreview   = "PREVIEW"
	RunStatusFinalized = "FINALIZED"
)

// Coverage classification per site
const (
	CoverageCovered   = "covered"
	CoverageAtRisk    = "at_risk"
	CoverageUncovered = "uncovered"
)
