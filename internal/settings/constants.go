package settings

// DB config keys and defaults for settings.
const (
	// SiteNameKey is the DB config key for the UI site name.
	SiteNameKey = "SITE_NAME"
	// DefaultSiteName is the fallback UI site name.
	DefaultSiteName = "TimeLedger"
	// CurrencyCodeKey is the DB config key for the display currency.
	CurrencyCodeKey = "CURRENCY_CODE"
	// DefaultCurrencyCode is the fallback display currency.
	DefaultCurrencyCode = "USD"
	// DefaultFiscalYearKey is the DB config key for the fiscal year reports
	// default to when a request names none.
	DefaultFiscalYearKey = "DEFAULT_FISCAL_YEAR"
)
