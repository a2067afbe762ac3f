package mgo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Session lifecycle events written to the audit collection.
const (
	SessionEventConnected    = "connected"
	SessionEventDisconnected = "disconnected"
	SessionEventTerminated   = "terminated"
)

// SessionLog is one audit record per connection lifecycle transition.
type SessionLog struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	ConnID      string             `bson:"conn_id"`
	UserID      string             `bson:"user_id"`
	RoomID      string             `bson:"room_id,omitempty"`
	WorkspaceID string             `bson:"workspace_id,omitempty"`
	GatewayID   string             `bson:"gateway_id"`
	Event       string             `bson:"event"`
	Reason      string             `bson:"reason,omitempty"`
	At          time.Time          `bson:"at"`
	DurationMS  int64              `bson:"duration_ms,omitempty"`
	MsgCount    int64              `bson:"msg_count,omitempty"`
	BytesIn     int64              `bson:"bytes_in,omitempty"`
	BytesOut    int64              `bson:"bytes_out,omitempty"`
}

var collectionName = "session_logs"

// SetCollection overrides the audit collection name (config driven).
func SetCollection(name string) {
	if name != "" {
		collectionName = name
	}
}

// InsertSessionLog writes one audit record. Returns false without error
// when the sink is not connected; the gateway never blocks on audit.
func InsertSessionLog(ctx context.Context, rec *SessionLog) (bool, error) {
	db, ok := TryGetDB()
	if !ok {
		return false, nil
	}
	if rec.At.IsZero() {
		rec.At = time.Now()
	}
	_, err := db.Collection(collectionName).InsertOne(ctx, rec)
	if err != nil {
		return false, err
	}
	return true, nil
}

// RecentSessionLogs returns the latest audit records for a user, newest first.
func RecentSessionLogs(ctx context.Context, userID string, limit int64) ([]SessionLog, error) {
	db, ok := TryGetDB()
	if !ok {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "at", Value: -1}}).
		SetLimit(limit)
	cur, err := db.Collection(collectionName).Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []SessionLog
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
