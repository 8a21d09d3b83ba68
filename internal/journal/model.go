package journal

import (
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DatabaseModels is a list of all the structs exported here which represent
// tables in the database schema.
var DatabaseModels = []interface{}{
	&Session{},
	&OverrideEvent{},
}

// Event kinds recorded for an override lifecycle.
const (
	EventGrant   = "grant"
	EventExtend  = "extend"
	EventRelease = "release"
)

// Session groups override events belonging to one extension run.
type Session struct {
	gorm.Model
	Name      string    `json:"name" gorm:"size:127"`
	StartedAt time.Time `json:"startedAt" gorm:"type:timestamptz"`
}

func (*Session) TableName() string {
	return "sessions"
}

// OverrideEvent records one transition in a signal override lifecycle.
// Position is the vehicle position in Web Mercator (EPSG 3857) at the time
// of the event; Metadata carries free-form context such as vehicle speed.
type OverrideEvent struct {
	gorm.Model
	Time      time.Time      `json:"time" gorm:"type:timestamptz;index:idx_override_time"`
	SessionID uint           `json:"sessionId" gorm:"index:idx_override_session_id"`
	Session   Session        `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	Event     string         `json:"event" gorm:"size:16;index:idx_override_event"`
	Agent     uint64         `json:"agent"`
	Light     uint64         `json:"light"`
	LightKind string         `json:"lightKind" gorm:"size:127"`
	Position  geom.Point     `json:"position"` // Agent position, Web Mercator with elevation
	Metadata  datatypes.JSON `json:"metadata"`
}

func (*OverrideEvent) TableName() string {
	return "override_events"
}
