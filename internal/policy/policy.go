// Package policy decides whether an actor may perform an action against a
// resource. Decisions are pure: callers gather ownership and enrollment facts
// and pass them in, and every denial is a discrete typed error so handlers can
// distinguish forbidden from not-found from state conflicts.
package policy

import (
	"time"

	"github.com/openclass/classroom-api/internal/models"
	appErrors "github.com/openclass/classroom-api/pkg/errors"
)

// Actor is the authenticated identity a request acts as. It is threaded
// explicitly through every workflow call; nothing reads an ambient user.
type Actor struct {
	ID   string
	Role models.UserRole
}

// ActorFromClaims projects JWT claims into an Actor.
func ActorFromClaims(claims *models.JWTClaims) Actor {
	if claims == nil {
		return Actor{}
	}
	return Actor{ID: claims.UserID, Role: claims.Role}
}

// CanManageClass allows class update/deletion and authorship of materials,
// assignments and rooms: the actor must be the owning teacher.
func CanManageClass(actor Actor, class *models.Class) error {
	if actor.Role != models.RoleTeacher {
		return appErrors.Clone(appErrors.ErrForbidden, "only teachers can manage classes")
	}
	if class == nil || class.OwnerID != actor.ID {
		return appErrors.Clone(appErrors.ErrForbidden, "you do not own this class")
	}
	return nil
}

// CanCreateClass allows class creation for teachers only.
func CanCreateClass(actor Actor) error {
	if actor.Role != models.RoleTeacher {
		return appErrors.Clone(appErrors.ErrForbidden, "only teachers can create classes")
	}
	return nil
}

// CanViewClass gates class detail and the reads scoped beneath it (materials,
// assignments). Teachers see any class; students only classes they joined.
func CanViewClass(actor Actor, enrolled bool) error {
	if actor.Role == models.RoleTeacher {
		return nil
	}
	if !enrolled {
		return appErrors.Clone(appErrors.ErrForbidden, "you are not enrolled in this class")
	}
	return nil
}

// CanJoinClass allows a student to redeem a join code.
func CanJoinClass(actor Actor, alreadyEnrolled bool) error {
	if actor.Role != models.RoleStudent {
		return appErrors.Clone(appErrors.ErrForbidden, "only students can join classes")
	}
	if alreadyEnrolled {
		return appErrors.ErrAlreadyEnrolled
	}
	return nil
}

// CanLeaveClass allows an enrolled student to leave.
func CanLeaveClass(actor Actor, enrolled bool) error {
	if actor.Role != models.RoleStudent {
		return appErrors.Clone(appErrors.ErrForbidden, "only students can leave classes")
	}
	if !enrolled {
		return appErrors.ErrNotEnrolled
	}
	return nil
}

// CanSubmit allows an enrolled student to submit before the deadline.
func CanSubmit(actor Actor, assignment *models.Assignment, enrolled bool, now time.Time) error {
	if actor.Role != models.RoleStudent {
		return appErrors.Clone(appErrors.ErrForbidden, "only students can submit assignments")
	}
	if !enrolled {
		return appErrors.Clone(appErrors.ErrForbidden, "you are not enrolled in this class")
	}
	if assignment != nil && assignment.IsPastDue(now) {
		return appErrors.ErrPastDue
	}
	return nil
}

// CanGradeSubmissions allows the owning teacher to grade, list and export
// submissions for an assignment in their class.
func CanGradeSubmissions(actor Actor, class *models.Class) error {
	if actor.Role != models.RoleTeacher {
		return appErrors.Clone(appErrors.ErrForbidden, "only teachers can grade submissions")
	}
	if class == nil || class.OwnerID != actor.ID {
		return appErrors.Clone(appErrors.ErrForbidden, "you do not own this class")
	}
	return nil
}
