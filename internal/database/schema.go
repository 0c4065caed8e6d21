package database

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

const (
	TaskProcessing string = "PROCESSING"
	TaskCompleted  string = "COMPLETED"
	TaskFailed     string = "FAILED"
)

const (
	TaskKindRegister string = "register"
	TaskKindUpdate   string = "update"
	TaskKindDelete   string = "delete"
	TaskKindTagging  string = "tagging"
)

type User struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	FullName       string `gorm:"not null"`
	Email          string
	Position       string
	AvatarImageUrl string
	Metadata       datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt      time.Time

	Face *UserFace `gorm:"foreignKey:UserId;constraint:OnDelete:CASCADE"`
}

// UserFace holds the single face embedding registered for a user. The unique
// index on UserId enforces the one-face-per-user invariant at the schema level.
type UserFace struct {
	Id     uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserId uuid.UUID `gorm:"type:uuid;uniqueIndex;not null"`

	Embedding pgvector.Vector `gorm:"type:vector(512)"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

type EventImage struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	RawImageUrl string         `gorm:"not null"`
	Metadata    datatypes.JSON `gorm:"type:jsonb"` // {"detected_faces":…,"recognized_users":[…],…}

	CreatedAt time.Time
	UpdatedAt time.Time
}

type BackgroundTask struct {
	Id   uuid.UUID `gorm:"type:uuid;primaryKey"`
	Kind string    `gorm:"size:20;not null"`

	Status   string `gorm:"size:20;not null"`
	Progress int    `gorm:"default:0"`

	TotalItems     int `gorm:"default:0"`
	CompletedItems int `gorm:"default:0"`
	FailedItems    int `gorm:"default:0"`

	Results      datatypes.JSON `gorm:"type:jsonb"` // [{"subject_id":"…","status":true},…]
	ErrorMessage sql.NullString

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ItemOutcome is the per-item entry stored in BackgroundTask.Results. Detail
// carries an optional human readable summary for successful items.
type ItemOutcome struct {
	SubjectId string `json:"subject_id"`
	Status    bool   `json:"status"`
	Detail    string `json:"detail,omitempty"`
	Error     string `json:"error,omitempty"`
}
