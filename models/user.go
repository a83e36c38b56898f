package models

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"html"
	"strings"
	"time"

	"github.com/fr33d0m21/pull/config"
	"github.com/fr33d0m21/pull/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Permissions struct {
	ManageUsers     bool `json:"manage_users"`
	ManageStores    bool `json:"manage_stores"`
	ViewAllStores   bool `json:"view_all_stores"`
	EditAllStores   bool `json:"edit_all_stores"`
	ViewDashboard   bool `json:"view_dashboard"`
	ViewSpreadsheet bool `json:"view_spreadsheet"`
	ProcessOrders   bool `json:"process_orders"`
}

func (p Permissions) Value() (driver.Value, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (p *Permissions) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*p = Permissions{}
		return nil
	case []byte:
		return json.Unmarshal(v, p)
	case string:
		return json.Unmarshal([]byte(v), p)
	}
	return errors.New("unsupported type for Permissions")
}

// DefaultPermissions is the permission bag a new profile of role gets.
func DefaultPermissions(role UserRole) Permissions {
	switch role {
	case UserRoleAdmin:
		return Permissions{
			ManageUsers: true, ManageStores: true, ViewAllStores: true, EditAllStores: true,
			ViewDashboard: true, ViewSpreadsheet: true, ProcessOrders: true,
		}
	case UserRoleManager:
		return Permissions{ViewDashboard: true, ViewSpreadsheet: true, ProcessOrders: true}
	default:
		return Permissions{ViewDashboard: true, ProcessOrders: true}
	}
}

type User struct {
	ID          int         `gorm:"primary_key" json:"id"`
	Username    string      `gorm:"size:100;not null;unique" json:"username"`
	Name        string      `gorm:"size:100;not null" json:"name"`
	Email       *string     `gorm:"size:100;unique" json:"email"`
	Password    string      `gorm:"size:255;not null" json:"-"`
	Role        UserRole    `gorm:"size:20;not null;default:'employee'" json:"role"`
	Permissions Permissions `gorm:"type:json" json:"permissions"`
	IsActive    *bool       `gorm:"not null;default:true" json:"is_active"`
	CreatedAt   time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time   `gorm:"autoUpdateTime" json:"updated_at"`

	StoreIds        []string `gorm:"-" json:"store_ids"`
	ManagedStoreIds []string `gorm:"-" json:"managed_stores"`
}

// UserStore grants a user access to a store; CanManage makes it a managed store.
type UserStore struct {
	UserId    int    `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	StoreId   string `gorm:"primaryKey;size:64" json:"store_id"`
	CanManage bool   `gorm:"not null;default:false" json:"can_manage"`
}

type NewUser struct {
	Username    string       `json:"username" binding:"required" validate:"required,max=100"`
	Name        string       `json:"name" binding:"required" validate:"required,max=100"`
	Email       string       `json:"email" validate:"omitempty,email"`
	Password    string       `json:"password" binding:"required" validate:"required,min=6"`
	Role        UserRole     `json:"role" binding:"required"`
	Permissions *Permissions `json:"permissions"`
	IsActive    *bool        `json:"is_active"`
}

type UpdateUserInput struct {
	Name        string       `json:"name" binding:"required" validate:"required,max=100"`
	Email       string       `json:"email" validate:"omitempty,email"`
	Role        UserRole     `json:"role" binding:"required"`
	Permissions *Permissions `json:"permissions"`
	IsActive    *bool        `json:"is_active"`
}

type UserStoresInput struct {
	StoreIds        []string `json:"store_ids"`
	ManagedStoreIds []string `json:"managed_stores"`
}

type LoginInfo struct {
	Token       string      `json:"token"`
	AccessToken string      `json:"access_token"`
	Name        string      `json:"name"`
	Role        UserRole    `json:"role"`
	Permissions Permissions `json:"permissions"`
	StoreIds    []string    `json:"store_ids"`
	ManagedIds  []string    `json:"managed_stores"`
}

/*
caches:
	User:$username
*/

func (user User) RemoveInstanceRedis(ctx context.Context) error {
	return config.RemoveRedisKey(ctx, "User:"+user.Username)
}

func (user *User) IsAdmin() bool {
	return user.Role == UserRoleAdmin
}

func (user *User) CanViewStore(storeId string) bool {
	if user.IsAdmin() || user.Permissions.ViewAllStores {
		return true
	}
	return containsString(user.StoreIds, storeId) || containsString(user.ManagedStoreIds, storeId)
}

// CanProcessStore allows recording received units on the store's orders.
func (user *User) CanProcessStore(storeId string) bool {
	if !user.CanViewStore(storeId) {
		return false
	}
	return user.IsAdmin() || user.Permissions.ProcessOrders || user.CanManageStore(storeId)
}

// CanManageStore allows uploads and clearing the store's orders.
func (user *User) CanManageStore(storeId string) bool {
	if user.IsAdmin() || user.Permissions.EditAllStores {
		return true
	}
	return containsString(user.ManagedStoreIds, storeId)
}

// AccessibleStoreIds returns nil when the user sees every store.
func (user *User) AccessibleStoreIds() []string {
	if user.IsAdmin() || user.Permissions.ViewAllStores {
		return nil
	}
	ids := append([]string{}, user.StoreIds...)
	return utils.UniqueSlice(append(ids, user.ManagedStoreIds...))
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func loadUserStores(ctx context.Context, db *gorm.DB, users ...*User) error {
	if len(users) == 0 {
		return nil
	}
	ids := make([]int, 0, len(users))
	byId := make(map[int]*User, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
		byId[u.ID] = u
		u.StoreIds = []string{}
		u.ManagedStoreIds = []string{}
	}
	var links []UserStore
	if err := db.WithContext(ctx).Where("user_id IN ?", ids).Order("store_id").Find(&links).Error; err != nil {
		return err
	}
	for _, l := range links {
		u := byId[l.UserId]
		if u == nil {
			continue
		}
		if l.CanManage {
			u.ManagedStoreIds = append(u.ManagedStoreIds, l.StoreId)
		} else {
			u.StoreIds = append(u.StoreIds, l.StoreId)
		}
	}
	return nil
}

// GetUserByUsername reads User:$username from redis, else the db, and caches it.
func GetUserByUsername(ctx context.Context, username string) (*User, error) {
	var user User
	exists, err := config.GetRedisObject(ctx, "User:"+username, &user)
	if err != nil {
		return nil, err
	}
	if exists {
		return &user, nil
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Where("username = ?", username).Take(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	if err := loadUserStores(ctx, db, &user); err != nil {
		return nil, err
	}
	if err := config.SetRedisObject(ctx, "User:"+username, &user, utils.TokenLifespan()); err != nil {
		return nil, err
	}
	return &user, nil
}

func Login(ctx context.Context, username string, password string) (*LoginInfo, error) {
	db := config.GetDB()

	var user User
	err := db.WithContext(ctx).Where("username = ?", username).Take(&user).Error
	if err != nil {
		return nil, errors.New("invalid username or password")
	}

	err = utils.ComparePassword(user.Password, password)
	if err != nil {
		if errors.Is(err, utils.ErrorUnauthorized) {
			return nil, errors.New("invalid username or password")
		}
		return nil, err
	}
	if !utils.DereferencePtr(user.IsActive, true) {
		return nil, errors.New("user is disabled")
	}
	if err := loadUserStores(ctx, db, &user); err != nil {
		return nil, err
	}

	token := uuid.NewString()
	accessToken, err := utils.JwtGenerate(user.ID, user.Username, string(user.Role))
	if err != nil {
		return nil, err
	}

	if err := config.AddSession(ctx, user.Username, token, utils.TokenLifespan()); err != nil {
		return nil, err
	}

	return &LoginInfo{
		Token:       token,
		AccessToken: accessToken,
		Name:        user.Name,
		Role:        user.Role,
		Permissions: user.Permissions,
		StoreIds:    user.StoreIds,
		ManagedIds:  user.ManagedStoreIds,
	}, nil
}

// destroy current session
func Logout(ctx context.Context) (bool, error) {
	token, ok := utils.GetTokenFromContext(ctx)
	if !ok || token == "" {
		return false, errors.New("token is required")
	}
	username, ok := utils.GetUsernameFromContext(ctx)
	if !ok || username == "" {
		return false, errors.New("user not found")
	}
	if err := config.RemoveSession(ctx, username, token); err != nil {
		return false, err
	}
	return true, nil
}

// revoke every session of username
func revokeSessions(ctx context.Context, username string) error {
	tokens, err := config.SessionTokens(ctx, username)
	if err != nil {
		return err
	}
	keys := []string{"Tokens:" + username, "User:" + username}
	for _, t := range tokens {
		keys = append(keys, "Token:"+t)
	}
	return config.RemoveRedisKey(ctx, keys...)
}

func ChangePassword(ctx context.Context, userId int, oldPassword string, newPassword string) error {
	if len(newPassword) < 6 {
		return errors.New("password must be at least 6 characters")
	}
	db := config.GetDB()
	var user User
	if err := db.WithContext(ctx).First(&user, userId).Error; err != nil {
		return utils.ErrorRecordNotFound
	}
	if err := utils.ComparePassword(user.Password, oldPassword); err != nil {
		return errors.New("current password is incorrect")
	}
	hashed, err := utils.HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := db.WithContext(ctx).Model(&user).Update("Password", string(hashed)).Error; err != nil {
		return err
	}
	return revokeSessions(ctx, user.Username)
}

func validateEmail(ctx context.Context, email string, exceptId int) error {
	if email == "" {
		return nil
	}
	if !utils.IsValidEmail(email) {
		return errors.New("invalid email address")
	}
	return utils.ValidateUnique[User](ctx, "", "email", email, exceptId)
}

func CreateUser(ctx context.Context, input *NewUser) (*User, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	if !input.Role.IsValid() {
		return nil, errors.New("invalid user role")
	}
	input.Username = html.EscapeString(strings.TrimSpace(input.Username))
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	if err := utils.ValidateUnique[User](ctx, "", "username", input.Username, 0); err != nil {
		return nil, err
	}
	if err := validateEmail(ctx, input.Email, 0); err != nil {
		return nil, err
	}

	hashedPassword, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}
	permissions := DefaultPermissions(input.Role)
	if input.Permissions != nil {
		permissions = *input.Permissions
	}
	isActive := input.IsActive
	if isActive == nil {
		isActive = utils.NewTrue()
	}

	user := User{
		Username:    input.Username,
		Name:        input.Name,
		Email:       utils.NilIfEmpty(input.Email),
		Password:    string(hashedPassword),
		Role:        input.Role,
		Permissions: permissions,
		IsActive:    isActive,
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, err
	}
	user.StoreIds = []string{}
	user.ManagedStoreIds = []string{}
	return &user, nil
}

func UpdateUser(ctx context.Context, id int, input *UpdateUserInput) (*User, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	if !input.Role.IsValid() {
		return nil, errors.New("invalid user role")
	}
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	if err := validateEmail(ctx, input.Email, id); err != nil {
		return nil, err
	}

	db := config.GetDB()
	var user User
	if err := db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}

	permissions := user.Permissions
	if input.Permissions != nil {
		permissions = *input.Permissions
	} else if input.Role != user.Role {
		permissions = DefaultPermissions(input.Role)
	}
	updates := map[string]interface{}{
		"Name":        input.Name,
		"Email":       utils.NilIfEmpty(input.Email),
		"Role":        input.Role,
		"Permissions": permissions,
	}
	if input.IsActive != nil {
		updates["IsActive"] = input.IsActive
	}
	if err := db.WithContext(ctx).Model(&user).Updates(updates).Error; err != nil {
		return nil, err
	}
	if err := user.RemoveInstanceRedis(ctx); err != nil {
		return nil, err
	}
	if input.IsActive != nil && !*input.IsActive {
		if err := revokeSessions(ctx, user.Username); err != nil {
			return nil, err
		}
	}
	return GetUser(ctx, id)
}

// SetUserStores replaces the user's accessible and managed store lists.
func SetUserStores(ctx context.Context, id int, input *UserStoresInput) (*User, error) {
	db := config.GetDB()
	var user User
	if err := db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}

	managed := utils.UniqueSlice(input.ManagedStoreIds)
	all := utils.UniqueSlice(append(append([]string{}, input.StoreIds...), managed...))
	if err := utils.ValidateResourcesId[Store](ctx, all); err != nil {
		return nil, errors.New("store not found")
	}

	links := make([]UserStore, 0, len(all))
	for _, storeId := range all {
		links = append(links, UserStore{UserId: id, StoreId: storeId, CanManage: containsString(managed, storeId)})
	}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", id).Delete(&UserStore{}).Error; err != nil {
			return err
		}
		if len(links) == 0 {
			return nil
		}
		return tx.Create(&links).Error
	})
	if err != nil {
		return nil, err
	}
	if err := user.RemoveInstanceRedis(ctx); err != nil {
		return nil, err
	}
	return GetUser(ctx, id)
}

func GetUser(ctx context.Context, id int) (*User, error) {
	db := config.GetDB()
	var result User
	if err := db.WithContext(ctx).First(&result, id).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	if err := loadUserStores(ctx, db, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func ListUsers(ctx context.Context) ([]*User, error) {
	db := config.GetDB()
	var results []*User
	if err := db.WithContext(ctx).Order("username").Find(&results).Error; err != nil {
		return nil, err
	}
	if err := loadUserStores(ctx, db, results...); err != nil {
		return nil, err
	}
	return results, nil
}
