package utils

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/fr33d0m21/pull/config"
	"github.com/go-playground/validator/v10"
	"github.com/ttacon/libphonenumber"
)

// CountryCode is the default region for phone numbers without a + prefix.
var CountryCode = "US"

var validate = validator.New()

func ValidateStruct(input any) error {
	return validate.Struct(input)
}

func IsValidEmail(email string) bool {
	return validate.Var(email, "required,email") == nil
}

func ValidatePhoneNumber(phoneNumber, countryCode string) error {
	num, err := libphonenumber.Parse(phoneNumber, countryCode)
	if err != nil {
		return err
	}
	if !libphonenumber.IsValidNumber(num) {
		return fmt.Errorf("phone number %q is not valid", phoneNumber)
	}
	return nil
}

// ProcessValidationErrors maps each failing field to its failed tag. Other
// errors come back under "error".
func ProcessValidationErrors(err error) map[string]string {
	var fields validator.ValidationErrors
	if !errors.As(err, &fields) {
		return map[string]string{"error": err.Error()}
	}
	out := make(map[string]string, len(fields))
	for _, fe := range fields {
		out[fe.Field()] = fe.Tag()
	}
	return out
}

// ResourceCountWhere counts T rows matching condition, within storeId when
// it is not blank.
func ResourceCountWhere[T any](ctx context.Context, storeId string, condition string, args ...interface{}) (int64, error) {
	q := config.GetDB().WithContext(ctx).Model(new(T))
	if storeId != "" {
		q = q.Where("store_id = ?", storeId)
	}
	var n int64
	err := q.Where(condition, args...).Count(&n).Error
	return n, err
}

// ValidateResourcesId fails with ErrorRecordNotFound unless every id exists.
func ValidateResourcesId[M any, ID comparable](ctx context.Context, ids []ID) error {
	ids = UniqueSlice(ids)
	if len(ids) == 0 {
		return nil
	}
	n, err := ResourceCountWhere[M](ctx, "", "id IN ?", ids)
	if err != nil {
		return err
	}
	if n != int64(len(ids)) {
		return ErrorRecordNotFound
	}
	return nil
}

// ValidateUnique rejects value when another row already holds it in column.
// A zero exceptId means no row is excluded.
func ValidateUnique[T any](ctx context.Context, storeId string, column string, value interface{}, exceptId interface{}) error {
	cond, args := column+" = ?", []interface{}{value}
	if exceptId != nil && !reflect.ValueOf(exceptId).IsZero() {
		cond += " AND id <> ?"
		args = append(args, exceptId)
	}
	n, err := ResourceCountWhere[T](ctx, storeId, cond, args...)
	if err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("duplicate %s", column)
	}
	return nil
}
