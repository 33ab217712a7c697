package authapi

// LoginRequest is the login endpoint's request body (§4.11).
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
	OrgID    string `json:"orgId,omitempty"`
}

// RegisterRequest is the register endpoint's request body (§4.11).
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Email    string `json:"email,omitempty" validate:"omitempty,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// Profile is the user-profile shape returned by login/register/oauthCallback.
type Profile struct {
	ID          string   `json:"id"`
	Username    string   `json:"username"`
	Email       string   `json:"email,omitempty"`
	Permissions []string `json:"permissions"`
	OrgID       string   `json:"orgId,omitempty"`
}

// OrgChoice is returned by login in place of a Profile when the user belongs
// to an org and none was selected in the request (§4.11).
type OrgChoice struct {
	Orgs []OrgOption `json:"orgs"`
}

// OrgOption names one org a caller may select on a follow-up login call.
type OrgOption struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SessionResponse is the session endpoint's response body (§4.11).
type SessionResponse struct {
	Authenticated bool     `json:"authenticated"`
	User          *Profile `json:"user,omitempty"`
}
