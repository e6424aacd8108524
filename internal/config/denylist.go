package config

// DefaultDenylistApps returns bundle identifiers whose notifications should
// never be archived: password managers, authenticators, banking apps and
// other sources of one-time codes or financial detail.
func DefaultDenylistApps() []string {
	return []string{
		// Password Managers
		"com.1password.1password",
		"com.agilebits.onepassword7",
		"com.bitwarden.desktop",
		"com.lastpass.LastPass",
		"com.dashlane.dashlanephonefinal",
		"com.apple.Passwords",
		"com.keepersecurity.passwordmanager",

		// Authenticators
		"com.yubico.yubioath",
		"com.authy.authy-mac",
		"com.duosecurity.DuoMobile",
		"com.microsoft.azureauthenticator",

		// Banking & Payments
		"com.chase.sig.Chase",
		"com.bankofamerica.BofA",
		"com.paypal.PPClient",
		"com.venmo.touch",
		"com.coinbase.Coinbase",

		// Messages carrying verification codes
		"com.apple.Passbook",
	}
}
