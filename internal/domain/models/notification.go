// internal/domain/models/notification.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Notification types.
const (
	NotifySubmission = "submission"
	NotifyEvidence   = "evidence"
	NotifyFeedback   = "feedback"
	NotifySystem     = "system"
)

// Notification records one event for one recipient. Only IsRead ever
// changes after creation, and only by the recipient.
type Notification struct {
	ID          primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	SenderID    primitive.ObjectID  `bson:"sender_id" json:"sender_id"`
	RecipientID primitive.ObjectID  `bson:"recipient_id" json:"recipient_id"`
	Type        string              `bson:"type" json:"type"`
	Message     string              `bson:"message" json:"message"`
	TaskID      *primitive.ObjectID `bson:"task_id,omitempty" json:"task_id,omitempty"`
	IsRead      bool                `bson:"is_read" json:"is_read"`
	CreatedAt   time.Time           `bson:"created_at" json:"created_at"`
}
