package store

import "time"

// Role is the closed set of account roles.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// ParseRole validates a raw role value.
func ParseRole(raw string) (Role, bool) {
	switch Role(raw) {
	case RoleAdmin, RoleUser:
		return Role(raw), true
	default:
		return "", false
	}
}

// TaskStatus is the closed set of task states. Any status may transition to
// any other status; there is no terminal state.
type TaskStatus string

const (
	StatusUnselected TaskStatus = "unselected"
	StatusInProgress TaskStatus = "in-progress"
	StatusDone       TaskStatus = "done"
	StatusReview     TaskStatus = "review"
)

// ParseTaskStatus validates a raw status value.
func ParseTaskStatus(raw string) (TaskStatus, bool) {
	switch TaskStatus(raw) {
	case StatusUnselected, StatusInProgress, StatusDone, StatusReview:
		return TaskStatus(raw), true
	default:
		return "", false
	}
}

type User struct {
	ID           string
	Name         string
	Email        string
	Username     string
	PasswordHash string
	Role         Role
	IsExternal   bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Project struct {
	ID            string
	Name          string
	OwnerID       string
	Collaborators []string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsMember reports whether userID is the owner or one of the collaborators.
func (p Project) IsMember(userID string) bool {
	if p.OwnerID == userID {
		return true
	}
	for _, collaboratorID := range p.Collaborators {
		if collaboratorID == userID {
			return true
		}
	}
	return false
}

// Comment lives only inside a task aggregate.
type Comment struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	AuthorID string `json:"authorId"`
}

// CommentList is the ordered comment collection of a task aggregate, keyed
// by comment ID. Insertion order is preserved through every mutation and
// drives serialization order.
type CommentList []Comment

// Find returns the comment with the given ID.
func (l CommentList) Find(commentID string) (Comment, bool) {
	for _, comment := range l {
		if comment.ID == commentID {
			return comment, true
		}
	}
	return Comment{}, false
}

// Append adds a comment at the end of the list.
func (l *CommentList) Append(comment Comment) {
	*l = append(*l, comment)
}

// SetText replaces the text of the comment with the given ID in place.
func (l CommentList) SetText(commentID, text string) bool {
	for i := range l {
		if l[i].ID == commentID {
			l[i].Text = text
			return true
		}
	}
	return false
}

// Remove deletes the comment with the given ID, keeping the order of the
// remaining comments.
func (l *CommentList) Remove(commentID string) bool {
	for i, comment := range *l {
		if comment.ID == commentID {
			*l = append((*l)[:i], (*l)[i+1:]...)
			return true
		}
	}
	return false
}

// Task and its comments form one aggregate: persisted, read, and replaced
// as a unit.
type Task struct {
	ID         string
	Name       string
	Status     TaskStatus
	ProjectID  string
	CreatedBy  string
	ModifiedBy *string
	Comments   CommentList
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
