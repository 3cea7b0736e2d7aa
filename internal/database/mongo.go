// Package database provides the shared persistent store of the bot:
// settings, invite credentials, rate-limit marks, the user directory
// and the auxiliary bot/site lists. Two implementations exist, MongoDB
// and MySQL, selected by configuration; both satisfy the interfaces of
// bot.Database, guard.CredentialStore, guard.SettingStore and
// core.Database.
package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"gatebot/entity"
	"gatebot/internal/config"
)

const (
	collectionSettings    = "settings"
	collectionCredentials = "credentials"
	collectionRateLimits  = "rate_limits"
	collectionUsers       = "users"
	collectionBots        = "bots"
	collectionSites       = "sites"
)

type MongoDB struct {
	clientOptions *options.ClientOptions
	database      string
}

func NewMongoClient(conf *config.Config) *MongoDB {
	if !conf.Mongo.Enabled {
		return nil
	}
	connectionUri := fmt.Sprintf("mongodb://%s:%s", conf.Mongo.Host, conf.Mongo.Port)
	clientOptions := options.Client().ApplyURI(connectionUri)
	if conf.Mongo.User != "" {
		clientOptions.SetAuth(options.Credential{
			Username:   conf.Mongo.User,
			Password:   conf.Mongo.Password,
			AuthSource: conf.Mongo.Database,
		})
	}
	return &MongoDB{
		clientOptions: clientOptions,
		database:      conf.Mongo.Database,
	}
}

func (m *MongoDB) connect(ctx context.Context) (*mongo.Client, error) {
	connection, err := mongo.Connect(ctx, m.clientOptions)
	if err != nil {
		return nil, fmt.Errorf("mongodb connect: %w", err)
	}
	return connection, nil
}

func (m *MongoDB) disconnect(ctx context.Context, connection *mongo.Client) {
	_ = connection.Disconnect(ctx)
}

func (m *MongoDB) collection(connection *mongo.Client, name string) *mongo.Collection {
	return connection.Database(m.database).Collection(name)
}

// --- settings ---

func (m *MongoDB) GetSetting(ctx context.Context, key string) (string, error) {
	connection, err := m.connect(ctx)
	if err != nil {
		return "", err
	}
	defer m.disconnect(ctx, connection)

	var setting entity.Setting
	filter := bson.D{{Key: "key", Value: key}}
	err = m.collection(connection, collectionSettings).FindOne(ctx, filter).Decode(&setting)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("mongodb find: %w", err)
	}
	return setting.Value, nil
}

func (m *MongoDB) SetSetting(ctx context.Context, key, value string) error {
	connection, err := m.connect(ctx)
	if err != nil {
		return err
	}
	defer m.disconnect(ctx, connection)

	filter := bson.D{{Key: "key", Value: key}}
	update := bson.D{{Key: "$set", Value: bson.D{{Key: "key", Value: key}, {Key: "value", Value: value}}}}
	opts := options.Update().SetUpsert(true)
	_, err = m.collection(connection, collectionSettings).UpdateOne(ctx, filter, update, opts)
	return err
}

// --- credentials ---

func (m *MongoDB) Credential(ctx context.Context, userId int64) (*entity.Credential, error) {
	connection, err := m.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer m.disconnect(ctx, connection)

	var cred entity.Credential
	filter := bson.D{{Key: "user_id", Value: userId}}
	err = m.collection(connection, collectionCredentials).FindOne(ctx, filter).Decode(&cred)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("mongodb find: %w", err)
	}
	return &cred, nil
}

func (m *MongoDB) UpsertCredential(ctx context.Context, cred *entity.Credential) error {
	connection, err := m.connect(ctx)
	if err != nil {
		return err
	}
	defer m.disconnect(ctx, connection)

	filter := bson.D{{Key: "user_id", Value: cred.UserId}}
	update := bson.D{{Key: "$set", Value: cred}}
	opts := options.Update().SetUpsert(true)
	_, err = m.collection(connection, collectionCredentials).UpdateOne(ctx, filter, update, opts)
	return err
}

// ConsumeCredential deletes the credential only while the stored link
// matches, in a single FindOneAndDelete. A credential replaced by a
// concurrent re-issue misses the filter and stays untouched.
func (m *MongoDB) ConsumeCredential(ctx context.Context, userId int64, inviteLink string) (bool, error) {
	connection, err := m.connect(ctx)
	if err != nil {
		return false, err
	}
	defer m.disconnect(ctx, connection)

	filter := bson.D{{Key: "user_id", Value: userId}, {Key: "invite_link", Value: inviteLink}}
	err = m.collection(connection, collectionCredentials).FindOneAndDelete(ctx, filter).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("mongodb delete: %w", err)
	}
	return true, nil
}

func (m *MongoDB) DeleteExpiredCredentials(ctx context.Context, before time.Time) (int64, error) {
	connection, err := m.connect(ctx)
	if err != nil {
		return 0, err
	}
	defer m.disconnect(ctx, connection)

	filter := bson.D{{Key: "expire_at", Value: bson.D{{Key: "$lt", Value: before}}}}
	result, err := m.collection(connection, collectionCredentials).DeleteMany(ctx, filter)
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}

func (m *MongoDB) CountActiveCredentials(ctx context.Context, now time.Time) (int64, error) {
	connection, err := m.connect(ctx)
	if err != nil {
		return 0, err
	}
	defer m.disconnect(ctx, connection)

	filter := bson.D{{Key: "expire_at", Value: bson.D{{Key: "$gt", Value: now}}}}
	return m.collection(connection, collectionCredentials).CountDocuments(ctx, filter)
}

// --- rate limits ---

func (m *MongoDB) RateLimitMark(ctx context.Context, userId int64) (*entity.RateLimitMark, error) {
	connection, err := m.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer m.disconnect(ctx, connection)

	var mark entity.RateLimitMark
	filter := bson.D{{Key: "user_id", Value: userId}}
	err = m.collection(connection, collectionRateLimits).FindOne(ctx, filter).Decode(&mark)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("mongodb find: %w", err)
	}
	return &mark, nil
}

func (m *MongoDB) UpsertRateLimitMark(ctx context.Context, mark *entity.RateLimitMark) error {
	connection, err := m.connect(ctx)
	if err != nil {
		return err
	}
	defer m.disconnect(ctx, connection)

	filter := bson.D{{Key: "user_id", Value: mark.UserId}}
	update := bson.D{{Key: "$set", Value: mark}}
	opts := options.Update().SetUpsert(true)
	_, err = m.collection(connection, collectionRateLimits).UpdateOne(ctx, filter, update, opts)
	return err
}

// --- user directory ---

// RegisterUser inserts the user on first contact only; later calls
// leave the original record intact.
func (m *MongoDB) RegisterUser(ctx context.Context, user *entity.User) error {
	connection, err := m.connect(ctx)
	if err != nil {
		return err
	}
	defer m.disconnect(ctx, connection)

	filter := bson.D{{Key: "user_id", Value: user.UserId}}
	update := bson.D{{Key: "$setOnInsert", Value: user}}
	opts := options.Update().SetUpsert(true)
	_, err = m.collection(connection, collectionUsers).UpdateOne(ctx, filter, update, opts)
	return err
}

func (m *MongoDB) UserIds(ctx context.Context) ([]int64, error) {
	connection, err := m.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer m.disconnect(ctx, connection)

	cursor, err := m.collection(connection, collectionUsers).Find(ctx, bson.D{})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var users []*entity.User
	if err = cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(users))
	for _, user := range users {
		ids = append(ids, user.UserId)
	}
	return ids, nil
}

func (m *MongoDB) CountUsers(ctx context.Context) (int64, error) {
	connection, err := m.connect(ctx)
	if err != nil {
		return 0, err
	}
	defer m.disconnect(ctx, connection)

	return m.collection(connection, collectionUsers).CountDocuments(ctx, bson.D{})
}

// --- auxiliary lists ---

func (m *MongoDB) Bots(ctx context.Context) ([]string, error) {
	return m.listValues(ctx, collectionBots, "username")
}

func (m *MongoDB) AddBot(ctx context.Context, username string) error {
	return m.addValue(ctx, collectionBots, "username", username)
}

func (m *MongoDB) RemoveBot(ctx context.Context, username string) error {
	return m.removeValue(ctx, collectionBots, "username", username)
}

func (m *MongoDB) Sites(ctx context.Context) ([]string, error) {
	return m.listValues(ctx, collectionSites, "url")
}

func (m *MongoDB) AddSite(ctx context.Context, url string) error {
	return m.addValue(ctx, collectionSites, "url", url)
}

func (m *MongoDB) RemoveSite(ctx context.Context, url string) error {
	return m.removeValue(ctx, collectionSites, "url", url)
}

func (m *MongoDB) listValues(ctx context.Context, coll, field string) ([]string, error) {
	connection, err := m.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer m.disconnect(ctx, connection)

	cursor, err := m.collection(connection, coll).Find(ctx, bson.D{})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var values []string
	for cursor.Next(ctx) {
		var doc bson.M
		if err = cursor.Decode(&doc); err != nil {
			return nil, err
		}
		if value, ok := doc[field].(string); ok {
			values = append(values, value)
		}
	}
	return values, cursor.Err()
}

func (m *MongoDB) addValue(ctx context.Context, coll, field, value string) error {
	connection, err := m.connect(ctx)
	if err != nil {
		return err
	}
	defer m.disconnect(ctx, connection)

	filter := bson.D{{Key: field, Value: value}}
	update := bson.D{{Key: "$set", Value: filter}}
	opts := options.Update().SetUpsert(true)
	_, err = m.collection(connection, coll).UpdateOne(ctx, filter, update, opts)
	return err
}

func (m *MongoDB) removeValue(ctx context.Context, coll, field, value string) error {
	connection, err := m.connect(ctx)
	if err != nil {
		return err
	}
	defer m.disconnect(ctx, connection)

	_, err = m.collection(connection, coll).DeleteOne(ctx, bson.D{{Key: field, Value: value}})
	return err
}
