// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mobius Contributors

package auth

// Authorization denial messages. They are safe to show the end user.
const (
	MsgNoAuthorityPassword   = "User has no authority to change the password."
	MsgCompanyMismatch       = "User has no authority to change the password: company mismatch."
	MsgGuestCannotCreate     = "Guest user has no authority to add user."
	MsgCannotCreateElsewhere = "User has no authority to add user. Cannot add user to other company."
	MsgBadRole               = "Bad access level."
	MsgBadStatus             = "Bad user status."
	MsgCompanyRequired       = "Company must be specified for non-Super users."
	MsgGuestCannotList       = "User has no authority to get user information."
	MsgCannotListElsewhere   = "User has no authority to get user information. Cannot search other company user."
	MsgCannotListHigherRole  = "User has no authority to get user information. Cannot search same or higher access level user."
)

// Decision is the outcome of an authorization check.
type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision {
	return Decision{Allowed: true}
}

func deny(reason string) Decision {
	return Decision{Reason: reason}
}

// Principal is the identity on whose behalf a request runs.
// It is normally taken from the caller's session.
type Principal struct {
	AccountID int64
	CompanyID *int64
	Role      Role
}

// PrincipalFromSession returns the principal captured in a session.
func PrincipalFromSession(s *Session) Principal {
	return Principal{AccountID: s.AccountID, CompanyID: s.CompanyID, Role: s.Role}
}

// CanResetPassword decides whether requester may set target's password
// without knowing the old one. Super may reset anyone. Everyone else needs
// the same company and a strictly higher role.
func CanResetPassword(requester Principal, target *Account) Decision {
	if requester.Role == RoleSuper {
		return allow()
	}
	if !SameCompany(requester.CompanyID, target.CompanyID) {
		return deny(MsgCompanyMismatch)
	}
	if !requester.Role.Outranks(target.Role) {
		return deny(MsgNoAuthorityPassword)
	}
	return allow()
}

// CreateRequest is the part of a user creation request that is authorized.
type CreateRequest struct {
	Role      string
	Status    string
	CompanyID *int64
}

// CreateGrant is the validated form of an allowed CreateRequest.
type CreateGrant struct {
	Role      Role
	Status    Status
	CompanyID *int64
}

// AuthorizeCreate decides whether requester may create the requested account.
// Non-super requesters create accounts in their own company only; a missing
// company is filled in with the requester's.
func AuthorizeCreate(requester Principal, req CreateRequest) (CreateGrant, Decision) {
	if requester.Role == RoleGuest {
		return CreateGrant{}, deny(MsgGuestCannotCreate)
	}

	companyID := req.CompanyID
	if requester.Role != RoleSuper {
		switch {
		case companyID == nil:
			companyID = requester.CompanyID
		case !SameCompany(companyID, requester.CompanyID):
			return CreateGrant{}, deny(MsgCannotCreateElsewhere)
		}
	}

	role, err := ParseRole(req.Role)
	if err != nil {
		return CreateGrant{}, deny(MsgBadRole)
	}
	status, err := ParseStatus(req.Status)
	if err != nil {
		return CreateGrant{}, deny(MsgBadStatus)
	}
	if role != RoleSuper && companyID == nil {
		return CreateGrant{}, deny(MsgCompanyRequired)
	}

	return CreateGrant{Role: role, Status: status, CompanyID: companyID}, allow()
}

// ListRequest is the part of a user search that is authorized.
type ListRequest struct {
	Role      string
	CompanyID *int64
}

// ListGrant is the validated form of an allowed ListRequest.
type ListGrant struct {
	Role      *Role
	CompanyID *int64
}

// AuthorizeList decides whether requester may search users with the given
// role and company predicates. Non-super requesters are confined to their own
// company and to roles strictly below their own.
func AuthorizeList(requester Principal, req ListRequest) (ListGrant, Decision) {
	if requester.Role == RoleGuest {
		return ListGrant{}, deny(MsgGuestCannotList)
	}

	grant := ListGrant{CompanyID: req.CompanyID}
	if requester.Role != RoleSuper {
		if req.CompanyID != nil && !SameCompany(req.CompanyID, requester.CompanyID) {
			return ListGrant{}, deny(MsgCannotListElsewhere)
		}
		grant.CompanyID = requester.CompanyID
	}

	if req.Role != "" {
		role, err := ParseRole(req.Role)
		if err != nil {
			return ListGrant{}, deny(MsgBadRole)
		}
		if requester.Role != RoleSuper && !requester.Role.Outranks(role) {
			return ListGrant{}, deny(MsgCannotListHigherRole)
		}
		grant.Role = &role
	}
	return grant, allow()
}
