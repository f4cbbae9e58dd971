package helpers

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/thameeshasirimanna-dev/whatsbi-sub002/internal/repository"
	"github.com/thameeshasirimanna-dev/whatsbi-sub002/pkg/pg"
	"github.com/thameeshasirimanna-dev/whatsbi-sub002/pkg/redis"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func SetupTestDB(t *testing.T) *pg.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&repository.AgentEntity{},
		&repository.CustomerEntity{},
		&repository.TemplateEntity{},
		&repository.ConversationMessageEntity{},
		&repository.DeliveryLogEntity{},
	)
	require.NoError(t, err)

	pgDB := &pg.DB{}
	pgDBValue := reflect.ValueOf(pgDB).Elem()

	readField := pgDBValue.FieldByName("read")
	writeField := pgDBValue.FieldByName("write")

	readField = reflect.NewAt(readField.Type(), readField.Addr().UnsafePointer()).Elem()
	writeField = reflect.NewAt(writeField.Type(), writeField.Addr().UnsafePointer()).Elem()

	readField.Set(reflect.ValueOf(db))
	writeField.Set(reflect.ValueOf(db))

	return pgDB
}

func SetupTestRedis(t *testing.T) (*miniredis.Miniredis, redis.RedisAdapter) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	adapter, err := redis.NewRedisAdapter("test", "", &goredis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)

	return mr, adapter
}

func CreateTestAgent(t *testing.T, db *pg.DB, id int64, creditBalance int64) *repository.AgentEntity {
	ctx := context.Background()
	agent := &repository.AgentEntity{
		ID:            id,
		Name:          "Test Agent",
		AccessToken:   RandomToken(),
		PhoneNumberID: "555000" + time.Now().Format("0405"),
		CreditBalance: creditBalance,
	}
	err := db.Write(ctx).Create(agent).Error
	require.NoError(t, err)
	return agent
}

func CreateTestCustomer(t *testing.T, db *pg.DB, agentID int64, phone string, lastInbound *time.Time) *repository.CustomerEntity {
	ctx := context.Background()
	customer := &repository.CustomerEntity{
		AgentID:       agentID,
		Phone:         phone,
		Name:          "Test Customer",
		LastInboundAt: lastInbound,
	}
	err := db.Write(ctx).Create(customer).Error
	require.NoError(t, err)
	return customer
}

func CreateTestTemplate(t *testing.T, db *pg.DB, agentID int64, name, category string, bodyParams []string) *repository.TemplateEntity {
	ctx := context.Background()
	tpl := &repository.TemplateEntity{
		AgentID:    agentID,
		Name:       name,
		Language:   "en_US",
		Category:   category,
		Active:     true,
		Body:       "Hello {{1}}",
		BodyParams: bodyParams,
	}
	err := db.Write(ctx).Create(tpl).Error
	require.NoError(t, err)
	return tpl
}

func CreateTestConversationMessage(t *testing.T, db *pg.DB, agentID, customerID int64, direction, body string) *repository.ConversationMessageEntity {
	ctx := context.Background()
	msg := &repository.ConversationMessageEntity{
		AgentID:    agentID,
		CustomerID: customerID,
		Direction:  direction,
		Body:       body,
		Timestamp:  time.Now(),
	}
	err := db.Write(ctx).Create(msg).Error
	require.NoError(t, err)
	return msg
}

func CreateTestDeliveryLog(t *testing.T, db *pg.DB, agentID int64, providerMessageID, status string) *repository.DeliveryLogEntity {
	ctx := context.Background()
	entry := &repository.DeliveryLogEntity{
		AgentID:           agentID,
		ProviderMessageID: providerMessageID,
		Status:            status,
		UpdatedAt:         time.Now(),
	}
	err := db.Write(ctx).Create(entry).Error
	require.NoError(t, err)
	return entry
}

func WaitForCondition(t *testing.T, timeout time.Duration, condition func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

func AssertEventually(t *testing.T, timeout time.Duration, condition func() bool, msg string) {
	if !WaitForCondition(t, timeout, condition) {
		t.Fatal(msg)
	}
}

func ContextWithTimeout(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

func RandomToken() string {
	return "test-access-token-" + time.Now().Format("20060102150405")
}

func Ptr[T any](v T) *T {
	return &v
}
