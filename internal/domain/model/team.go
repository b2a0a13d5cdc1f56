package model

import "time"

// Member statuses.
const (
	MemberActive   = "active"
	MemberInactive = "inactive"
)

// MemberMetrics is the denormalized copy of a user's per-team score that is
// embedded in the team's member list.
type MemberMetrics struct {
	Score          float64   `bson:"score" json:"score"`
	CompletedTasks int       `bson:"completedTasks" json:"completedTasks"`
	OverdueTasks   int       `bson:"overdueTasks" json:"overdueTasks"`
	TotalTasks     int       `bson:"totalTasks" json:"totalTasks"`
	LastUpdated    time.Time `bson:"lastUpdated" json:"lastUpdated"`
}

// Member is one entry of a team's member list. PerformanceScore and
// CompletedTasks mirror Metrics for legacy readers.
type Member struct {
	UserID           string        `bson:"user" json:"user"`
	Role             string        `bson:"role" json:"role"`
	Status           string        `bson:"status" json:"status"`
	Metrics          MemberMetrics `bson:"metrics" json:"metrics"`
	PerformanceScore float64       `bson:"performanceScore" json:"performanceScore"`
	CompletedTasks   int           `bson:"completedTasks" json:"completedTasks"`
}

// Team is a group of users with an embedded member list.
type Team struct {
	ID      string   `bson:"_id" json:"id"`
	Name    string   `bson:"name" json:"name"`
	Members []Member `bson:"members" json:"members"`
}

// Member returns the member entry for userID, if present.
func (t Team) Member(userID string) (Member, bool) {
	for _, m := range t.Members {
		if m.UserID == userID {
			return m, true
		}
	}
	return Member{}, false
}

// Clone returns a deep copy of the team.
func (t Team) Clone() Team {
	out := t
	if t.Members != nil {
		out.Members = make([]Member, len(t.Members))
		copy(out.Members, t.Members)
	}
	return out
}
