package models

// UserCollection holds one profile document per user, keyed by user id.
const UserCollection = "user"

// Profile is the per-user document kept in the document database. Fields
// the document does not carry stay unset.
type Profile struct {
	AccountType Optional[AccountType]  `json:"accountType"`
	Active      Optional[ActiveStatus] `json:"active"`
}

// DefaultProfile is written for every newly created account.
func DefaultProfile() Profile {
	return Profile{
		AccountType: Some(AccountStandard),
		Active:      Some(StatusActive),
	}
}

// Fields renders the profile as a document body.
func (p Profile) Fields() map[string]interface{} {
	out := map[string]interface{}{}
	if v, ok := p.AccountType.Get(); ok {
		out["accountType"] = int(v)
	}
	if v, ok := p.Active.Get(); ok {
		out["active"] = int(v)
	}
	return out
}

// ProfileFromFields reads a profile out of a document body. Values that are
// missing, of the wrong type or out of range are left unset.
func ProfileFromFields(fields map[string]interface{}) Profile {
	var p Profile
	if n, ok := asInt(fields["accountType"]); ok && AccountType(n).Valid() {
		p.AccountType = Some(AccountType(n))
	}
	if n, ok := asInt(fields["active"]); ok && ActiveStatus(n).Valid() {
		p.Active = Some(ActiveStatus(n))
	}
	return p
}

// asInt accepts the numeric shapes the document backends hand back.
func asInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		if n != float64(int(n)) {
			return 0, false
		}
		return int(n), true
	case float32:
		if n != float32(int(n)) {
			return 0, false
		}
		return int(n), true
	}
	return 0, false
}
