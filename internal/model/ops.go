package model

// OpKind is the kind of a WriteOp.
type OpKind int

const (
	OpCreate OpKind = iota
	OpUpdate
	OpDelete
)

func (k OpKind) String() string {
	switch k {
	case OpCreate:
		return "create"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	}
	return "unknown"
}

// WriteOp is one entry of an all-or-nothing batch write.
type WriteOp struct {
	Kind    OpKind
	ID      string      // update, delete
	Task    *Task       // create
	Changes TaskChanges // update
}

func CreateOp(t Task) WriteOp {
	return WriteOp{Kind: OpCreate, Task: &t}
}

func UpdateOp(id string, changes TaskChanges) WriteOp {
	return WriteOp{Kind: OpUpdate, ID: id, Changes: changes}
}

func DeleteOp(id string) WriteOp {
	return WriteOp{Kind: OpDelete, ID: id}
}
