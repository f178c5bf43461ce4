package events

const (
	RecordsImportedName    = "records.imported"
	RecordsAssignedName    = "records.assigned"
	RecordsDistributedName = "records.distributed"
	RecordsWithdrawnName   = "records.withdrawn"
	StatusUpdatedName      = "records.status_updated"
)

// RecordsImported is published after a batch is inserted.
type RecordsImported struct {
	BaseEvent
	BatchNumber string
	Count       int
	ImportedBy  int64
}

func (RecordsImported) EventName() string { return RecordsImportedName }

// RecordsAssigned is published when an admin grants records to a TL or user.
// NewEntries is true when a work-queue entry was created for TargetID.
type RecordsAssigned struct {
	BaseEvent
	RecordIDs  []string
	TargetID   int64
	TargetType string
	AssignedBy int64
	NewEntries bool
}

func (RecordsAssigned) EventName() string { return RecordsAssignedName }

// RecordsDistributed is published once per member that received records.
type RecordsDistributed struct {
	BaseEvent
	TLID      int64
	MemberID  int64
	RecordIDs []string
	Method    string
}

func (RecordsDistributed) EventName() string { return RecordsDistributedName }

// RecordsWithdrawn is published once per member whose entries were withdrawn.
// MemberID is zero when the record had no active entry (TL pool withdraw).
type RecordsWithdrawn struct {
	BaseEvent
	MemberID    int64
	HolderID    int64
	RecordIDs   []string
	WithdrawnBy int64
	Reason      string
}

func (RecordsWithdrawn) EventName() string { return RecordsWithdrawnName }

// StatusUpdated is published after a member reports an outcome. AssignedBy
// is whoever opened the entry (the distributing TL or an admin).
type StatusUpdated struct {
	BaseEvent
	RecordID   string
	UserID     int64
	AssignedBy int64
	Status     string
}

func (StatusUpdated) EventName() string { return StatusUpdatedName }
