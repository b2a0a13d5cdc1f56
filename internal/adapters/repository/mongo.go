package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/perfscore/internal/domain/model"
	"github.com/okian/perfscore/pkg/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Collection names shared with the task tracker.
const (
	CollectionTasks  = "tasks"
	CollectionTeams  = "teams"
	CollectionScores = "performance_scores"
)

// taskProjection is the subset of task fields the scoring formulas read.
var taskProjection = bson.M{
	"_id": 1, "status": 1, "priority": 1, "difficulty": 1, "assignedTo": 1,
	"startDate": 1, "dueDate": 1, "completedAt": 1, "teamId": 1,
}

// MongoStore implements Store over a MongoDB database.
type MongoStore struct {
	client    *mongo.Client
	tasks     *mongo.Collection
	teams     *mongo.Collection
	scores    *mongo.Collection
	opTimeout time.Duration
	log       logger.Logger
}

// NewMongoStore connects to uri, pings the primary and ensures the score
// index exists.
func NewMongoStore(ctx context.Context, uri, database string, opts ...MongoOption) (*MongoStore, error) {
	s := &MongoStore{opTimeout: 10 * time.Second, log: logger.Nop()}
	for _, opt := range opts {
		opt(s)
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, unavailable(err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, unavailable(err)
	}

	db := client.Database(database)
	s.client = client
	s.tasks = db.Collection(CollectionTasks)
	s.teams = db.Collection(CollectionTeams)
	s.scores = db.Collection(CollectionScores)

	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	s.log.Info(ctx, "connected to mongodb", logger.String("database", database))
	return s, nil
}

// ensureIndexes creates the (userId, teamId) lookup index. It is not unique:
// one record per pair comes from upserting on the pair.
func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	_, err := s.scores.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "teamId", Value: 1}},
		Options: options.Index().SetName("user_team"),
	})
	if err != nil {
		return unavailable(err)
	}
	return nil
}

// idValues matches an id stored either as an ObjectID or as its hex string.
func idValues(id string) bson.M {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return bson.M{"$in": bson.A{oid, id}}
	}
	return bson.M{"$in": bson.A{id}}
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}

// PutTask inserts or replaces a task. Used to seed data.
func (s *MongoStore) PutTask(ctx context.Context, t model.Task) error {
	if t.ID == "" {
		t.ID = primitive.NewObjectID().Hex()
	}
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	_, err := s.tasks.ReplaceOne(ctx, bson.M{"_id": t.ID}, t, options.Replace().SetUpsert(true))
	if err != nil {
		return unavailable(err)
	}
	return nil
}

// PutTeam inserts or replaces a team. Used to seed data.
func (s *MongoStore) PutTeam(ctx context.Context, t model.Team) error {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	_, err := s.teams.ReplaceOne(ctx, bson.M{"_id": t.ID}, t, options.Replace().SetUpsert(true))
	if err != nil {
		return unavailable(err)
	}
	return nil
}

// TasksForUser implements TaskDirectory with a projected find.
func (s *MongoStore) TasksForUser(ctx context.Context, userID string) ([]model.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	cur, err := s.tasks.Find(ctx, bson.M{"assignedTo": idValues(userID)},
		options.Find().SetProjection(taskProjection))
	if err != nil {
		return nil, unavailable(err)
	}
	var out []model.Task
	if err := cur.All(ctx, &out); err != nil {
		return nil, unavailable(err)
	}
	return out, nil
}

// TeamsForUser implements TeamDirectory.
func (s *MongoStore) TeamsForUser(ctx context.Context, userID string) ([]model.Team, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	cur, err := s.teams.Find(ctx, bson.M{"members.user": idValues(userID)})
	if err != nil {
		return nil, unavailable(err)
	}
	var out []model.Team
	if err := cur.All(ctx, &out); err != nil {
		return nil, unavailable(err)
	}
	return out, nil
}

// TeamByID implements TeamDirectory.
func (s *MongoStore) TeamByID(ctx context.Context, teamID string) (model.Team, error) {
	if !s.ValidKey(teamID) {
		return model.Team{}, ErrInvalidKey
	}
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	var t model.Team
	err := s.teams.FindOne(ctx, bson.M{"_id": idValues(teamID)}).Decode(&t)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.Team{}, ErrNotFound
	}
	if err != nil {
		return model.Team{}, unavailable(err)
	}
	return t, nil
}

// FindScore implements ScoreStore.
func (s *MongoStore) FindScore(ctx context.Context, userID, teamID string) (model.PerformanceScore, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	var ps model.PerformanceScore
	err := s.scores.FindOne(ctx, bson.M{"userId": userID, "teamId": teamID}).Decode(&ps)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.PerformanceScore{}, ErrNotFound
	}
	if err != nil {
		return model.PerformanceScore{}, unavailable(err)
	}
	return ps, nil
}

// pairUpsert builds an upsert keyed on (userId, teamId). The record's _id is
// only written on insert, so a later writer of the same pair overwrites the
// fields and keeps the stored _id.
func pairUpsert(ps model.PerformanceScore) (filter, update bson.D, err error) { //nolint:gocritic // hugeParam: records are passed by value across the store API
	raw, err := bson.Marshal(ps)
	if err != nil {
		return nil, nil, fmt.Errorf("encode score: %w", err)
	}
	var doc bson.D
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, nil, fmt.Errorf("encode score: %w", err)
	}
	fields := make(bson.D, 0, len(doc))
	for _, e := range doc {
		if e.Key != "_id" {
			fields = append(fields, e)
		}
	}
	filter = bson.D{{Key: "userId", Value: ps.UserID}, {Key: "teamId", Value: ps.TeamID}}
	update = bson.D{
		{Key: "$set", Value: fields},
		{Key: "$setOnInsert", Value: bson.D{{Key: "_id", Value: ps.ID}}},
	}
	return filter, update, nil
}

// ReplaceScore implements ScoreStore as an upsert on (userId, teamId).
func (s *MongoStore) ReplaceScore(ctx context.Context, score model.PerformanceScore) error {
	if score.ID == "" {
		return ErrInvalidKey
	}
	filter, update, err := pairUpsert(score)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	if _, err := s.scores.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true)); err != nil {
		return unavailable(err)
	}
	return nil
}

// BulkUpsertScores implements ScoreStore with one unordered BulkWrite.
func (s *MongoStore) BulkUpsertScores(ctx context.Context, scores []model.PerformanceScore) error {
	if len(scores) == 0 {
		return nil
	}
	models := make([]mongo.WriteModel, 0, len(scores))
	for _, ps := range scores {
		filter, update, err := pairUpsert(ps)
		if err != nil {
			return err
		}
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(filter).
			SetUpdate(update).
			SetUpsert(true))
	}
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	if _, err := s.scores.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false)); err != nil {
		return unavailable(err)
	}
	return nil
}

// NewScoreID implements ScoreStore.
func (s *MongoStore) NewScoreID() string { return primitive.NewObjectID().Hex() }

// UpdateMemberMetrics implements MemberMetricsWriter with a positional update.
func (s *MongoStore) UpdateMemberMetrics(ctx context.Context, teamID, userID string, m model.MemberMetrics) (bool, error) {
	return s.updateMember(ctx, teamID, userID, bson.M{
		"members.$.metrics":          m,
		"members.$.performanceScore": m.Score,
		"members.$.completedTasks":   m.CompletedTasks,
	})
}

// UpdateMemberStatus implements MemberStatusWriter.
func (s *MongoStore) UpdateMemberStatus(ctx context.Context, teamID, userID, status string) (bool, error) {
	return s.updateMember(ctx, teamID, userID, bson.M{"members.$.status": status})
}

func (s *MongoStore) updateMember(ctx context.Context, teamID, userID string, set bson.M) (bool, error) {
	if !s.ValidKey(teamID) {
		return false, ErrInvalidKey
	}
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	res, err := s.teams.UpdateOne(ctx,
		bson.M{"_id": idValues(teamID), "members.user": idValues(userID)},
		bson.M{"$set": set},
	)
	if err != nil {
		return false, unavailable(err)
	}
	return res.MatchedCount > 0, nil
}

// ValidKey accepts 24-character hex ObjectIDs.
func (s *MongoStore) ValidKey(id string) bool { return primitive.IsValidObjectID(id) }

// Close disconnects the client.
func (s *MongoStore) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}
