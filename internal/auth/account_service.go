// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mobius Contributors

package auth

import (
	"context"
	"errors"

	"github.com/samber/oops"

	"github.com/pjmobius/mobius/pkg/errutil"
)

// User-facing account management messages.
const (
	MsgSessionTimeout     = "Session time out."
	MsgUserNotFound       = "User not found."
	MsgDuplicateUserName  = "Duplicate user name."
	MsgPasswordIncorrect  = "Password incorrect."
	MsgPasswordUpdated    = "Password updated successfully."
	MsgUserNameTaken      = "User name already exists."
	MsgUserNameRequired   = "User name is required."
	MsgUserCreated        = "User created successfully."
	MsgSearchNeedsFilter  = "At least one search condition must be specified."
	MsgUsersFound         = "Users found."
	MsgPasswordsRequired  = "New password is required."
	MsgTargetNameRequired = "Target user name is required."
)

// UpdatePasswordRequest changes an account password.
// A nil OldPassword requests an administrative reset.
type UpdatePasswordRequest struct {
	Token       string
	UserName    string
	OldPassword *string
	NewPassword string
}

// UpdateResult is the outcome of a mutation.
type UpdateResult struct {
	Updated bool
	Message string
}

// AddUserRequest creates an account.
type AddUserRequest struct {
	Token           string
	UserName        string
	Email           string
	Password        string
	InitialPassword bool
	Role            string
	Status          string
	CompanyID       *int64
}

// AddUserResult is the outcome of AddUser.
type AddUserResult struct {
	Created   bool
	AccountID int64
	Message   string
}

// ListUsersRequest searches accounts by exact match.
// Online, when set, keeps only users whose online state matches.
type ListUsersRequest struct {
	Token     string
	AccountID *int64
	UserName  string
	Email     string
	Role      string
	CompanyID *int64
	Status    string
	Online    *bool
}

// UserView is an account as shown in listings.
type UserView struct {
	AccountID int64
	UserName  string
	Email     string
	Role      Role
	CompanyID *int64
	Status    Status
	Online    bool
}

// ListUsersResult is the outcome of ListUsers.
type ListUsersResult struct {
	OK      bool
	Users   []UserView
	Message string
}

// AccountService performs privileged account operations on behalf of a
// session holder.
type AccountService struct {
	accounts  AccountStore
	validator *Validator
	hasher    Hasher
	opts      options
}

// NewAccountService creates a new AccountService.
func NewAccountService(accounts AccountStore, validator *Validator, hasher Hasher, opts ...Option) (*AccountService, error) {
	if accounts == nil {
		return nil, oops.Code(CodeConfigInvalid).Errorf("accounts store is required")
	}
	if validator == nil {
		return nil, oops.Code(CodeConfigInvalid).Errorf("session validator is required")
	}
	if hasher == nil {
		return nil, oops.Code(CodeConfigInvalid).Errorf("password hasher is required")
	}
	return &AccountService{
		accounts:  accounts,
		validator: validator,
		hasher:    hasher,
		opts:      buildOptions(opts),
	}, nil
}

// UpdatePassword changes the password of the named account.
// With an old password it is a self change checked against the stored digest.
// Without one it is an administrative reset checked by CanResetPassword.
func (s *AccountService) UpdatePassword(ctx context.Context, req UpdatePasswordRequest) (UpdateResult, error) {
	logger := s.opts.logger.With("operation", "update_password", "target", req.UserName)

	session, rejected, err := s.authenticate(ctx, req.Token)
	if err != nil || rejected != "" {
		return UpdateResult{Message: rejected}, err
	}
	requester := PrincipalFromSession(session)

	if req.UserName == "" {
		return UpdateResult{Message: MsgTargetNameRequired}, nil
	}
	if !IsStrong(req.NewPassword) {
		logger.InfoContext(ctx, "password update rejected: weak password")
		return UpdateResult{Message: WeakPasswordMessage}, nil
	}

	matches, err := s.accounts.FindByUserName(ctx, req.UserName)
	if err != nil {
		return UpdateResult{Message: FaultMessage}, s.fault(ctx, "find account", err)
	}
	switch len(matches) {
	case 0:
		return UpdateResult{Message: MsgUserNotFound}, nil
	case 1:
	default:
		errutil.LogError(ctx, logger, "password update rejected: duplicate user name",
			oops.Code(CodeIntegrityViolation).With("matches", len(matches)).Errorf("user name is not unique"))
		return UpdateResult{Message: MsgDuplicateUserName}, nil
	}
	target := matches[0]

	if req.OldPassword == nil {
		if decision := CanResetPassword(requester, target); !decision.Allowed {
			logger.InfoContext(ctx, "password reset denied",
				"requester_id", requester.AccountID,
				"requester_role", requester.Role.String(),
				"target_role", target.Role.String(),
				"reason", decision.Reason)
			recordDenial("reset_password")
			return UpdateResult{Message: decision.Reason}, nil
		}
	} else if !s.hasher.Verify(*req.OldPassword, target.UserName, target.PasswordDigest) {
		logger.InfoContext(ctx, "password change rejected: old password mismatch")
		return UpdateResult{Message: MsgPasswordIncorrect}, nil
	}

	digest := s.hasher.Derive(req.NewPassword, target.UserName)
	if err := s.accounts.UpdatePassword(ctx, target.ID, digest, requester.AccountID); err != nil {
		return UpdateResult{Message: FaultMessage}, s.fault(ctx, "update password", err)
	}

	logger.InfoContext(ctx, "password updated", "account_id", target.ID, "requester_id", requester.AccountID)
	return UpdateResult{Updated: true, Message: MsgPasswordUpdated}, nil
}

// AddUser creates an account on behalf of the session holder.
func (s *AccountService) AddUser(ctx context.Context, req AddUserRequest) (AddUserResult, error) {
	logger := s.opts.logger.With("operation", "add_user", "user_name", req.UserName)

	session, rejected, err := s.authenticate(ctx, req.Token)
	if err != nil || rejected != "" {
		return AddUserResult{Message: rejected}, err
	}
	requester := PrincipalFromSession(session)

	grant, decision := AuthorizeCreate(requester, CreateRequest{
		Role:      req.Role,
		Status:    req.Status,
		CompanyID: req.CompanyID,
	})
	if !decision.Allowed {
		logger.InfoContext(ctx, "add user denied",
			"requester_id", requester.AccountID,
			"requester_role", requester.Role.String(),
			"reason", decision.Reason)
		recordDenial("add_user")
		return AddUserResult{Message: decision.Reason}, nil
	}
	if req.UserName == "" {
		return AddUserResult{Message: MsgUserNameRequired}, nil
	}
	if !IsStrong(req.Password) {
		logger.InfoContext(ctx, "add user rejected: weak password")
		return AddUserResult{Message: WeakPasswordMessage}, nil
	}

	createdBy := requester.AccountID
	account, err := NewAccount(req.UserName, req.Email, s.hasher.Derive(req.Password, req.UserName),
		grant.Role, grant.CompanyID, grant.Status, req.InitialPassword, &createdBy)
	if err != nil {
		return AddUserResult{Message: FaultMessage}, s.fault(ctx, "build account", err)
	}

	id, err := s.accounts.Create(ctx, account)
	if err != nil {
		if errors.Is(err, ErrDuplicate) {
			errutil.LogWarn(ctx, logger, "add user rejected: user name taken",
				oops.Code(CodeIntegrityViolation).Wrap(err))
			return AddUserResult{Message: MsgUserNameTaken}, nil
		}
		return AddUserResult{Message: FaultMessage}, s.fault(ctx, "create account", err)
	}

	logger.InfoContext(ctx, "user created", "account_id", id, "requester_id", requester.AccountID)
	return AddUserResult{Created: true, AccountID: id, Message: MsgUserCreated}, nil
}

// ListUsers searches accounts visible to the session holder and decorates
// each with its online state.
func (s *AccountService) ListUsers(ctx context.Context, req ListUsersRequest) (ListUsersResult, error) {
	logger := s.opts.logger.With("operation", "list_users")

	if req.AccountID == nil && req.UserName == "" && req.Email == "" && req.Role == "" &&
		req.CompanyID == nil && req.Status == "" {
		return ListUsersResult{Message: MsgSearchNeedsFilter}, nil
	}

	session, rejected, err := s.authenticate(ctx, req.Token)
	if err != nil || rejected != "" {
		return ListUsersResult{Message: rejected}, err
	}
	requester := PrincipalFromSession(session)

	grant, decision := AuthorizeList(requester, ListRequest{Role: req.Role, CompanyID: req.CompanyID})
	if !decision.Allowed {
		logger.InfoContext(ctx, "list users denied",
			"requester_id", requester.AccountID,
			"requester_role", requester.Role.String(),
			"reason", decision.Reason)
		recordDenial("list_users")
		return ListUsersResult{Message: decision.Reason}, nil
	}

	filter := AccountFilter{
		ID:        req.AccountID,
		UserName:  req.UserName,
		Email:     req.Email,
		Role:      grant.Role,
		CompanyID: grant.CompanyID,
	}
	if req.Status != "" {
		status, err := ParseStatus(req.Status)
		if err != nil {
			return ListUsersResult{Message: MsgBadStatus}, nil
		}
		filter.Status = &status
	}

	accounts, err := s.accounts.Find(ctx, filter)
	if err != nil {
		return ListUsersResult{Message: FaultMessage}, s.fault(ctx, "find accounts", err)
	}

	users := make([]UserView, 0, len(accounts))
	for _, a := range accounts {
		online, err := s.validator.IsActiveUser(ctx, a.ID)
		if err != nil {
			errutil.LogWarn(ctx, logger, "online check failed, reporting offline", err, "account_id", a.ID)
			online = false
		}
		if req.Online != nil && online != *req.Online {
			continue
		}
		users = append(users, UserView{
			AccountID: a.ID,
			UserName:  a.UserName,
			Email:     a.Email,
			Role:      a.Role,
			CompanyID: a.CompanyID,
			Status:    a.Status,
			Online:    online,
		})
	}

	return ListUsersResult{OK: true, Users: users, Message: MsgUsersFound}, nil
}

// authenticate resolves the caller's session. A non-empty rejection message
// means the session is not valid.
func (s *AccountService) authenticate(ctx context.Context, token string) (*Session, string, error) {
	session, err := s.validator.Authenticate(ctx, token)
	if err != nil {
		if errors.Is(err, ErrSessionInvalid) {
			return nil, MsgSessionTimeout, nil
		}
		return nil, FaultMessage, err
	}
	return session, "", nil
}

func (s *AccountService) fault(ctx context.Context, operation string, err error) error {
	wrapped := oops.Code(CodeAccountOperation).With("operation", operation).Wrap(err)
	errutil.LogError(ctx, s.opts.logger, "account operation failed", wrapped)
	return wrapped
}
