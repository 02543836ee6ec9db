package config

import "time"

type Timing struct {
	file *FileValues
}

var _ TimingConfig = Timing{}

func (t Timing) GetQuoteInterval() time.Duration {
	return lookupDuration("QUOTE_INTERVAL", t.file.Timing.QuoteInterval, 2*time.Second)
}

func (t Timing) GetConnectPollInterval() time.Duration {
	return lookupDuration("CONNECT_POLL_INTERVAL", t.file.Timing.ConnectPollInterval, 2*time.Second)
}

func (t Timing) GetConnectTimeout() time.Duration {
	return lookupDuration("CONNECT_TIMEOUT", t.file.Timing.ConnectTimeout, 5*time.Minute)
}

// GetPopupCloseDelay is how long the callback page stays open after success.
func (t Timing) GetPopupCloseDelay() time.Duration {
	return lookupDuration("POPUP_CLOSE_DELAY", t.file.Timing.PopupCloseDelay, 10*time.Second)
}
