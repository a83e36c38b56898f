package workflow

import (
	"errors"
	"time"

	"github.com/fr33d0m21/pull/models"
	mysqlDriver "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

var ErrIdempotencyInProgress = errors.New("a request with this idempotency key is still in progress")

// A STARTED key older than staleAfter is treated as abandoned and taken over.
const staleAfter = 5 * time.Minute

const mysqlDuplicateEntry = 1062

func isDuplicateKeyErr(err error) bool {
	var myErr *mysqlDriver.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDuplicateEntry
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

// idemKey addresses one (store, handler, message) row.
type idemKey struct {
	storeId, handler, messageId string
}

func (k idemKey) scope(tx *gorm.DB) *gorm.DB {
	return tx.Model(&models.IdempotencyKey{}).
		Where("store_id = ? AND handler_name = ? AND message_id = ?", k.storeId, k.handler, k.messageId)
}

func (k idemKey) set(tx *gorm.DB, status models.IdempotencyStatus, fields map[string]interface{}) error {
	if fields == nil {
		fields = map[string]interface{}{}
	}
	fields["status"] = status
	return k.scope(tx).Updates(fields).Error
}

// BeginIdempotency claims messageId for handlerName in storeId. A key that
// already SUCCEEDED returns skip=true with the stored result for replay; a
// fresh STARTED key held by someone else returns ErrIdempotencyInProgress.
func BeginIdempotency(tx *gorm.DB, storeId, handlerName, messageId string) (skip bool, result *string, err error) {
	k := idemKey{storeId, handlerName, messageId}
	err = tx.Create(&models.IdempotencyKey{
		StoreId:     storeId,
		HandlerName: handlerName,
		MessageId:   messageId,
		Status:      models.IdempotencyStatusStarted,
	}).Error
	if err == nil || !isDuplicateKeyErr(err) {
		return false, nil, err
	}

	var prior models.IdempotencyKey
	if err := k.scope(tx).First(&prior).Error; err != nil {
		return false, nil, err
	}
	if prior.Status == models.IdempotencyStatusSucceeded {
		return true, prior.Result, nil
	}
	if prior.Status == models.IdempotencyStatusStarted && time.Since(prior.UpdatedAt) < staleAfter {
		return false, nil, ErrIdempotencyInProgress
	}
	return false, nil, k.set(tx, models.IdempotencyStatusStarted, map[string]interface{}{"last_error": nil})
}

// MarkIdempotencySucceeded stores result for later replays.
func MarkIdempotencySucceeded(tx *gorm.DB, storeId, handlerName, messageId string, result string) error {
	return idemKey{storeId, handlerName, messageId}.set(tx, models.IdempotencyStatusSucceeded,
		map[string]interface{}{"result": &result, "last_error": nil})
}

// MarkIdempotencyFailed releases the key so a retry may run again.
func MarkIdempotencyFailed(tx *gorm.DB, storeId, handlerName, messageId string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return idemKey{storeId, handlerName, messageId}.set(tx, models.IdempotencyStatusFailed,
		map[string]interface{}{"last_error": &msg})
}
