package vesting

import "errors"

// Kind classifies a failure so callers can tell "fix the input" from "not
// allowed" from "not enough funds" from an invariant breach.
type Kind uint8

const (
	KindValidation Kind = iota + 1
	KindAuthorization
	KindEconomic
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthorization:
		return "authorization"
	case KindEconomic:
		return "economic"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error is a program failure with a stable numeric code.
type Error struct {
	Code uint32
	Kind Kind
	Name string
	msg  string
}

func (e *Error) Error() string { return "vesting: " + e.msg }

// Is matches any program error with the same code, so the economic variants
// a claim returns still satisfy errors.Is against the exported values.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	// ErrUnauthorized indicates the caller is not the configuration authority
	// or the schedule beneficiary.
	ErrUnauthorized = &Error{Code: 6000, Kind: KindAuthorization, Name: "Unauthorized", msg: "caller is not authorized"}

	// ErrInvalidAmount indicates a zero amount: a zero fee at initialization
	// or a zero total. A claim with nothing claimable yet reports the same
	// code with the economic kind.
	ErrInvalidAmount = &Error{Code: 6001, Kind: KindValidation, Name: "InvalidAmount", msg: "invalid amount"}

	// ErrInvalidStartTimestamp indicates a start time in the past at creation.
	// A claim before the start time reports the same code with the economic
	// kind.
	ErrInvalidStartTimestamp = &Error{Code: 6002, Kind: KindValidation, Name: "InvalidStartTimestamp", msg: "invalid start timestamp"}

	// ErrInvalidEndTimestamp indicates an end time not after the start time.
	ErrInvalidEndTimestamp = &Error{Code: 6003, Kind: KindValidation, Name: "InvalidEndTimestamp", msg: "invalid end timestamp"}

	// ErrInvalidPeriodsConfiguration indicates zero periods, a zero period
	// duration, or periods * amount per period not equal to the total.
	ErrInvalidPeriodsConfiguration = &Error{Code: 6004, Kind: KindValidation, Name: "InvalidPeriodsConfiguration", msg: "invalid periods configuration"}

	// ErrZeroAddress indicates a null identity where a real one is required.
	ErrZeroAddress = &Error{Code: 6005, Kind: KindValidation, Name: "ZeroAddress", msg: "zero address not allowed"}

	// ErrInsufficientBalance indicates the grantor cannot cover fee plus total.
	ErrInsufficientBalance = &Error{Code: 6006, Kind: KindEconomic, Name: "InsufficientBalance", msg: "insufficient balance"}

	// ErrArithmeticOverflow indicates a checked operation overflowed.
	ErrArithmeticOverflow = &Error{Code: 6007, Kind: KindFatal, Name: "ArithmeticOverflow", msg: "arithmetic overflow"}

	// ErrAccountInUse indicates the configuration or schedule address is
	// already initialized.
	ErrAccountInUse = &Error{Code: 6008, Kind: KindValidation, Name: "AccountInUse", msg: "account already in use"}

	// ErrAccountNotFound indicates a referenced configuration, schedule or
	// vault does not exist.
	ErrAccountNotFound = &Error{Code: 6009, Kind: KindValidation, Name: "AccountNotFound", msg: "account not found"}

	// ErrInvalidVault indicates a vault record that does not match its schedule.
	ErrInvalidVault = &Error{Code: 6010, Kind: KindFatal, Name: "InvalidVault", msg: "vault does not match schedule"}

	// ErrInvalidInstruction indicates undecodable instruction data.
	ErrInvalidInstruction = &Error{Code: 6011, Kind: KindValidation, Name: "InvalidInstruction", msg: "invalid instruction"}

	// ErrAccountDiscriminator indicates an account holds a different record type.
	ErrAccountDiscriminator = &Error{Code: 6012, Kind: KindValidation, Name: "AccountDiscriminatorMismatch", msg: "account discriminator mismatch"}
)

// Claim failures that clear up with time.
var (
	errNothingClaimable = &Error{Code: 6001, Kind: KindEconomic, Name: "InvalidAmount", msg: "invalid amount"}
	errNotStarted       = &Error{Code: 6002, Kind: KindEconomic, Name: "InvalidStartTimestamp", msg: "invalid start timestamp"}
)

var allErrors = []*Error{
	ErrUnauthorized,
	ErrInvalidAmount,
	ErrInvalidStartTimestamp,
	ErrInvalidEndTimestamp,
	ErrInvalidPeriodsConfiguration,
	ErrZeroAddress,
	ErrInsufficientBalance,
	ErrArithmeticOverflow,
	ErrAccountInUse,
	ErrAccountNotFound,
	ErrInvalidVault,
	ErrInvalidInstruction,
	ErrAccountDiscriminator,
}

// CodeOf returns the code of the first *Error in err's chain.
func CodeOf(err error) (uint32, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return 0, false
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// ErrorByCode looks up a program error by its numeric code.
func ErrorByCode(code uint32) (*Error, bool) {
	for _, e := range allErrors {
		if e.Code == code {
			return e, true
		}
	}
	return nil, false
}
