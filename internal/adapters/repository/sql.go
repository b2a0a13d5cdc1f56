package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/okian/perfscore/internal/domain/model"
	"github.com/okian/perfscore/pkg/logger"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

type taskRow struct {
	ID          string `gorm:"primaryKey;size:64"`
	Title       string `gorm:"size:255"`
	Status      string `gorm:"size:32;not null"`
	Priority    string `gorm:"size:32"`
	Difficulty  string `gorm:"size:32"`
	TeamID      string `gorm:"size:64;index"`
	StartDate   time.Time
	DueDate     time.Time
	CompletedAt *time.Time
	CreatedAt   time.Time
	AssignedTo  datatypes.JSONSlice[string]
	Assignees   []taskAssigneeRow `gorm:"foreignKey:TaskID;constraint:OnDelete:CASCADE"`
}

func (taskRow) TableName() string { return "tasks" }

// taskAssigneeRow indexes AssignedTo for lookups by user.
type taskAssigneeRow struct {
	TaskID string `gorm:"primaryKey;size:64"`
	UserID string `gorm:"primaryKey;size:64;index"`
}

func (taskAssigneeRow) TableName() string { return "task_assignees" }

type teamRow struct {
	ID      string      `gorm:"primaryKey;size:64"`
	Name    string      `gorm:"size:255"`
	Members []memberRow `gorm:"foreignKey:TeamID;constraint:OnDelete:CASCADE"`
}

func (teamRow) TableName() string { return "teams" }

type memberRow struct {
	TeamID           string `gorm:"primaryKey;size:64"`
	UserID           string `gorm:"primaryKey;size:64;index"`
	Role             string `gorm:"size:32"`
	Status           string `gorm:"size:32"`
	MetricsScore     float64
	MetricsCompleted int
	MetricsOverdue   int
	MetricsTotal     int
	MetricsUpdated   time.Time
	PerformanceScore float64
	CompletedTasks   int
}

func (memberRow) TableName() string { return "team_members" }

type scoreRow struct {
	ID                  string  `gorm:"primaryKey;size:64"`
	UserID              string  `gorm:"size:64;not null;uniqueIndex:idx_scores_user_team"`
	TeamID              string  `gorm:"size:64;not null;default:'';uniqueIndex:idx_scores_user_team"`
	Score               float64 `gorm:"not null"`
	CompletedTasksCount int
	OverdueTasksCount   int
	TotalTasksCount     int
	LastUpdated         time.Time
	History             datatypes.JSONSlice[model.ScoreHistoryEntry]
}

func (scoreRow) TableName() string { return "performance_scores" }

// scoreUpdateColumns are overwritten when an upsert hits an existing row.
var scoreUpdateColumns = []string{
	"score", "completed_tasks_count", "overdue_tasks_count", "total_tasks_count", "last_updated", "history",
}

// SQLStore implements Store over gorm. Only the pure-Go sqlite dialect is
// wired; the schema is portable.
type SQLStore struct {
	db  *gorm.DB
	log logger.Logger
}

// NewSQLiteStore opens (or creates) the sqlite database at dsn and migrates
// the schema. Use ":memory:" for a throwaway database.
func NewSQLiteStore(ctx context.Context, dsn string, opts ...SQLOption) (*SQLStore, error) {
	st := sqlSettings{log: logger.Nop()}
	for _, opt := range opts {
		opt(&st)
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, unavailable(fmt.Errorf("failed to open database: %w", err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, unavailable(fmt.Errorf("failed to get underlying SQL DB: %w", err))
	}
	if st.maxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(st.maxOpenConns)
	}

	if err := db.WithContext(ctx).AutoMigrate(&taskRow{}, &taskAssigneeRow{}, &teamRow{}, &memberRow{}, &scoreRow{}); err != nil {
		_ = sqlDB.Close()
		return nil, unavailable(fmt.Errorf("failed to migrate: %w", err))
	}
	st.log.Info(ctx, "opened sql store", logger.String("dsn", dsn))
	return &SQLStore{db: db, log: st.log}, nil
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return unavailable(err)
}

// PutTask inserts or replaces a task and its assignee index.
func (s *SQLStore) PutTask(ctx context.Context, t model.Task) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	row := taskRow{
		ID: t.ID, Title: t.Title, Status: string(t.Status), Priority: string(t.Priority),
		Difficulty: string(t.Difficulty), TeamID: t.TeamID, StartDate: t.StartDate, DueDate: t.DueDate,
		CompletedAt: t.CompletedAt, CreatedAt: t.CreatedAt, AssignedTo: datatypes.JSONSlice[string](t.AssignedTo),
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("task_id = ?", t.ID).Delete(&taskAssigneeRow{}).Error; err != nil {
			return err
		}
		if err := tx.Omit("Assignees").Save(&row).Error; err != nil {
			return err
		}
		for _, u := range t.AssignedTo {
			if err := tx.Create(&taskAssigneeRow{TaskID: t.ID, UserID: u}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return unavailable(err)
	}
	return nil
}

// PutTeam inserts or replaces a team and its member rows.
func (s *SQLStore) PutTeam(ctx context.Context, t model.Team) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("team_id = ?", t.ID).Delete(&memberRow{}).Error; err != nil {
			return err
		}
		if err := tx.Omit("Members").Save(&teamRow{ID: t.ID, Name: t.Name}).Error; err != nil {
			return err
		}
		for _, m := range t.Members {
			row := toMemberRow(t.ID, m)
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return unavailable(err)
	}
	return nil
}

// TasksForUser implements TaskDirectory.
func (s *SQLStore) TasksForUser(ctx context.Context, userID string) ([]model.Task, error) {
	db := s.db.WithContext(ctx)
	var rows []taskRow
	err := db.Select("id", "status", "priority", "difficulty", "team_id", "start_date", "due_date", "completed_at", "assigned_to").
		Where("id IN (?)", db.Model(&taskAssigneeRow{}).Select("task_id").Where("user_id = ?", userID)).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, unavailable(err)
	}
	out := make([]model.Task, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.Task{
			ID: r.ID, Status: model.Status(r.Status), Priority: model.Priority(r.Priority),
			Difficulty: model.Difficulty(r.Difficulty), TeamID: r.TeamID, StartDate: r.StartDate,
			DueDate: r.DueDate, CompletedAt: r.CompletedAt, AssignedTo: []string(r.AssignedTo),
		})
	}
	return out, nil
}

// TeamsForUser implements TeamDirectory.
func (s *SQLStore) TeamsForUser(ctx context.Context, userID string) ([]model.Team, error) {
	db := s.db.WithContext(ctx)
	var rows []teamRow
	err := db.Preload("Members").
		Where("id IN (?)", db.Model(&memberRow{}).Select("team_id").Where("user_id = ?", userID)).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, unavailable(err)
	}
	out := make([]model.Team, 0, len(rows))
	for _, r := range rows {
		out = append(out, fromTeamRow(r))
	}
	return out, nil
}

// TeamByID implements TeamDirectory.
func (s *SQLStore) TeamByID(ctx context.Context, teamID string) (model.Team, error) {
	if !s.ValidKey(teamID) {
		return model.Team{}, ErrInvalidKey
	}
	var row teamRow
	if err := s.db.WithContext(ctx).Preload("Members").Where("id = ?", teamID).Take(&row).Error; err != nil {
		return model.Team{}, translate(err)
	}
	return fromTeamRow(row), nil
}

// FindScore implements ScoreStore.
func (s *SQLStore) FindScore(ctx context.Context, userID, teamID string) (model.PerformanceScore, error) {
	var row scoreRow
	if err := s.db.WithContext(ctx).Where("user_id = ? AND team_id = ?", userID, teamID).Take(&row).Error; err != nil {
		return model.PerformanceScore{}, translate(err)
	}
	return fromScoreRow(row), nil
}

// ReplaceScore implements ScoreStore, upserting on the primary key.
func (s *SQLStore) ReplaceScore(ctx context.Context, score model.PerformanceScore) error {
	if score.ID == "" {
		return ErrInvalidKey
	}
	row := toScoreRow(score)
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns(append([]string{"user_id", "team_id"}, scoreUpdateColumns...)),
	}).Create(&row).Error
	if err != nil {
		return unavailable(err)
	}
	return nil
}

// BulkUpsertScores implements ScoreStore with one multi-row INSERT ... ON
// CONFLICT (user_id, team_id).
func (s *SQLStore) BulkUpsertScores(ctx context.Context, scores []model.PerformanceScore) error {
	if len(scores) == 0 {
		return nil
	}
	rows := make([]scoreRow, 0, len(scores))
	for _, ps := range scores {
		if ps.ID == "" {
			ps.ID = s.NewScoreID()
		}
		rows = append(rows, toScoreRow(ps))
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "team_id"}},
		DoUpdates: clause.AssignmentColumns(scoreUpdateColumns),
	}).Create(&rows).Error
	if err != nil {
		return unavailable(err)
	}
	return nil
}

// NewScoreID implements ScoreStore.
func (s *SQLStore) NewScoreID() string { return uuid.NewString() }

// UpdateMemberMetrics implements MemberMetricsWriter.
func (s *SQLStore) UpdateMemberMetrics(ctx context.Context, teamID, userID string, m model.MemberMetrics) (bool, error) {
	return s.updateMember(ctx, teamID, userID, map[string]any{
		"metrics_score":     m.Score,
		"metrics_completed": m.CompletedTasks,
		"metrics_overdue":   m.OverdueTasks,
		"metrics_total":     m.TotalTasks,
		"metrics_updated":   m.LastUpdated,
		"performance_score": m.Score,
		"completed_tasks":   m.CompletedTasks,
	})
}

// UpdateMemberStatus implements MemberStatusWriter.
func (s *SQLStore) UpdateMemberStatus(ctx context.Context, teamID, userID, status string) (bool, error) {
	return s.updateMember(ctx, teamID, userID, map[string]any{"status": status})
}

func (s *SQLStore) updateMember(ctx context.Context, teamID, userID string, set map[string]any) (bool, error) {
	if !s.ValidKey(teamID) {
		return false, ErrInvalidKey
	}
	res := s.db.WithContext(ctx).Model(&memberRow{}).
		Where("team_id = ? AND user_id = ?", teamID, userID).
		Updates(set)
	if res.Error != nil {
		return false, unavailable(res.Error)
	}
	return res.RowsAffected > 0, nil
}

// ValidKey accepts UUIDs.
func (s *SQLStore) ValidKey(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// Close closes the connection pool.
func (s *SQLStore) Close(context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toMemberRow(teamID string, m model.Member) memberRow {
	return memberRow{
		TeamID: teamID, UserID: m.UserID, Role: m.Role, Status: m.Status,
		MetricsScore: m.Metrics.Score, MetricsCompleted: m.Metrics.CompletedTasks,
		MetricsOverdue: m.Metrics.OverdueTasks, MetricsTotal: m.Metrics.TotalTasks,
		MetricsUpdated: m.Metrics.LastUpdated, PerformanceScore: m.PerformanceScore,
		CompletedTasks: m.CompletedTasks,
	}
}

func fromTeamRow(r teamRow) model.Team {
	t := model.Team{ID: r.ID, Name: r.Name, Members: make([]model.Member, 0, len(r.Members))}
	for _, m := range r.Members {
		t.Members = append(t.Members, model.Member{
			UserID: m.UserID, Role: m.Role, Status: m.Status,
			Metrics: model.MemberMetrics{
				Score: m.MetricsScore, CompletedTasks: m.MetricsCompleted,
				OverdueTasks: m.MetricsOverdue, TotalTasks: m.MetricsTotal, LastUpdated: m.MetricsUpdated,
			},
			PerformanceScore: m.PerformanceScore,
			CompletedTasks:   m.CompletedTasks,
		})
	}
	return t
}

func toScoreRow(ps model.PerformanceScore) scoreRow {
	history := ps.History
	if history == nil {
		history = []model.ScoreHistoryEntry{}
	}
	return scoreRow{
		ID: ps.ID, UserID: ps.UserID, TeamID: ps.TeamID, Score: ps.Score,
		CompletedTasksCount: ps.CompletedTasksCount, OverdueTasksCount: ps.OverdueTasksCount,
		TotalTasksCount: ps.TotalTasksCount, LastUpdated: ps.LastUpdated,
		History: datatypes.JSONSlice[model.ScoreHistoryEntry](history),
	}
}

func fromScoreRow(r scoreRow) model.PerformanceScore {
	history := []model.ScoreHistoryEntry(r.History)
	if history == nil {
		history = []model.ScoreHistoryEntry{}
	}
	return model.PerformanceScore{
		ID: r.ID, UserID: r.UserID, TeamID: r.TeamID, Score: r.Score,
		CompletedTasksCount: r.CompletedTasksCount, OverdueTasksCount: r.OverdueTasksCount,
		TotalTasksCount: r.TotalTasksCount, LastUpdated: r.LastUpdated, History: history,
	}
}
