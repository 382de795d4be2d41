package types

// AddressFormat identifies the account encoding a chain expects for recipients.
type AddressFormat string

const (
	// AccountId32 represents 32-byte Substrate accounts encoded as SS58
	// (also accepted as 0x-prefixed 64-character hex).
	AccountId32 AddressFormat = "ACCOUNT_ID32"
	// AccountKey20 represents 20-byte Ethereum-style accounts used by EVM parachains.
	AccountKey20 AddressFormat = "ACCOUNT_KEY20"
)

// String converts AddressFormat to string representation
func (f AddressFormat) String() string {
	return string(f)
}

// ParseAddressFormat converts string to AddressFormat representation.
// Unrecognized values default to AccountId32, the dominant format in the ecosystem.
func ParseAddressFormat(s string) AddressFormat {
	if s == AccountKey20.String() {
		return AccountKey20
	}
	return AccountId32
}
