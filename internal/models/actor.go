package models

import "fmt"

// ActorKind tells which account table an Actor id points into.
type ActorKind string

const (
	ActorEmployee ActorKind = "employee"
	ActorPM       ActorKind = "pm"
)

func (k ActorKind) Valid() bool {
	switch k {
	case ActorEmployee, ActorPM:
		return true
	}
	return false
}

// Actor addresses either an Employee or a PM. PM and employee ids come from
// separate sequences, so an id alone never identifies an account.
type Actor struct {
	Kind ActorKind `json:"kind"`
	ID   int64     `json:"id"`
}

func EmployeeActor(id int64) Actor { return Actor{Kind: ActorEmployee, ID: id} }
func PMActor(id int64) Actor       { return Actor{Kind: ActorPM, ID: id} }

func (a Actor) String() string {
	return fmt.Sprintf("%s#%d", a.Kind, a.ID)
}
