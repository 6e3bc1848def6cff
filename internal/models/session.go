package models

import "time"

// AuthState is the two-state session machine.
type AuthState string

const (
	Unauthenticated AuthState = "unauthenticated"
	Authenticated   AuthState = "authenticated"
)

// AccountType is the account tier stored on the user profile.
type AccountType int

const (
	AccountStandard   AccountType = 1
	AccountModerator  AccountType = 2
	AccountVerified   AccountType = 3
	AccountSuperAdmin AccountType = 4
)

// Valid reports whether t is one of the known tiers.
func (t AccountType) Valid() bool {
	return t >= AccountStandard && t <= AccountSuperAdmin
}

// ActiveStatus is the account status stored on the user profile.
type ActiveStatus int

const (
	StatusInactive  ActiveStatus = 0
	StatusActive    ActiveStatus = 1
	StatusSuspended ActiveStatus = 2
	StatusBanned    ActiveStatus = 3
)

// Valid reports whether s is one of the known statuses.
func (s ActiveStatus) Valid() bool {
	return s >= StatusInactive && s <= StatusBanned
}

// Session is the process-wide record of authentication and last known
// location. It is owned by session.Store; everybody else gets copies.
type Session struct {
	AuthState          AuthState                   `json:"type"`
	UserID             string                      `json:"uid,omitempty"`
	AccountType        Optional[AccountType]       `json:"accountType"`
	Active             Optional[ActiveStatus]      `json:"active"`
	CurrentLocation    Optional[Viewport]          `json:"currentLocation"`
	SearchLocation     Optional[Viewport]          `json:"searchLocation"`
	LocationPermission Optional[PermissionOutcome] `json:"locationPermission"`
	SessionStartTime   Optional[time.Time]         `json:"sessionStartTime"`
	Expiry             Optional[time.Time]         `json:"expiry"`
}

// DefaultSession is the unauthenticated, location-less starting state.
func DefaultSession() Session {
	return Session{AuthState: Unauthenticated}
}

// IsAuthenticated reports whether the session is in the authenticated state.
func (s Session) IsAuthenticated() bool {
	return s.AuthState == Authenticated
}

// IsDefault reports whether s is exactly the default session, which is
// never persisted.
func (s Session) IsDefault() bool {
	return s == DefaultSession()
}

// IsExpired reports whether the expiry is set and not after now.
func (s Session) IsExpired(now time.Time) bool {
	exp, ok := s.Expiry.Get()
	return ok && !exp.After(now)
}

// WithoutAuth drops identity and profile fields and keeps the location
// fields.
func (s Session) WithoutAuth() Session {
	s.AuthState = Unauthenticated
	s.UserID = ""
	s.AccountType = None[AccountType]()
	s.Active = None[ActiveStatus]()
	s.SessionStartTime = None[time.Time]()
	s.Expiry = None[time.Time]()
	return s
}

// Patch is a partial Session. A nil field is left untouched by Apply; a
// non-nil field is assigned, including Optional fields set to None.
type Patch struct {
	AuthState          *AuthState
	UserID             *string
	AccountType        *Optional[AccountType]
	Active             *Optional[ActiveStatus]
	CurrentLocation    *Optional[Viewport]
	SearchLocation     *Optional[Viewport]
	LocationPermission *Optional[PermissionOutcome]
	SessionStartTime   *Optional[time.Time]
	Expiry             *Optional[time.Time]
}

// Apply returns s with every present field of p assigned.
func (p Patch) Apply(s Session) Session {
	if p.AuthState != nil {
		s.AuthState = *p.AuthState
	}
	if p.UserID != nil {
		s.UserID = *p.UserID
	}
	if p.AccountType != nil {
		s.AccountType = *p.AccountType
	}
	if p.Active != nil {
		s.Active = *p.Active
	}
	if p.CurrentLocation != nil {
		s.CurrentLocation = *p.CurrentLocation
	}
	if p.SearchLocation != nil {
		s.SearchLocation = *p.SearchLocation
	}
	if p.LocationPermission != nil {
		s.LocationPermission = *p.LocationPermission
	}
	if p.SessionStartTime != nil {
		s.SessionStartTime = *p.SessionStartTime
	}
	if p.Expiry != nil {
		s.Expiry = *p.Expiry
	}
	return s
}

// Fields lists the names of the present fields, for logging.
func (p Patch) Fields() []string {
	var out []string
	add := func(present bool, name string) {
		if present {
			out = append(out, name)
		}
	}
	add(p.AuthState != nil, "type")
	add(p.UserID != nil, "uid")
	add(p.AccountType != nil, "accountType")
	add(p.Active != nil, "active")
	add(p.CurrentLocation != nil, "currentLocation")
	add(p.SearchLocation != nil, "searchLocation")
	add(p.LocationPermission != nil, "locationPermission")
	add(p.SessionStartTime != nil, "sessionStartTime")
	add(p.Expiry != nil, "expiry")
	return out
}

// AuthenticatedPatch builds the patch folded into the session after a
// successful login, sign-up or external sign-in.
func AuthenticatedPatch(userID string, profile Profile, start time.Time, ttl time.Duration) Patch {
	return Patch{
		AuthState:        Ptr(Authenticated),
		UserID:           Ptr(userID),
		AccountType:      Ptr(profile.AccountType),
		Active:           Ptr(profile.Active),
		SessionStartTime: Ptr(Some(start)),
		Expiry:           Ptr(Some(start.Add(ttl))),
	}
}

// LocationPatch stores a fix as the current location.
func LocationPatch(fix LocationFix) Patch {
	return Patch{CurrentLocation: Ptr(Some(fix.Viewport()))}
}
