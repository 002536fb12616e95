package models

import (
	"encoding/json"
	"math"
	"strings"
	"time"
)

// Field names as they appear in source tables and CSV headers.
const (
	FieldAssetID      = "asset_id"
	FieldTimestamp    = "timestamp"
	FieldCurrentPrice = "current_price"
	FieldRSI          = "rsi"
	FieldEMA20        = "ema_20"
	FieldMACDDiff     = "macd_diff"
	FieldBBUpper      = "bb_upper"
	FieldBBLower      = "bb_lower"
	FieldSignal       = "signal"
	FieldPrice        = "price"
)

// Signal tags, listed in rule evaluation order.
const (
	TagBuyRSIOversold     = "BUY_RSI_OVERSOLD"
	TagSellRSIOverbought  = "SELL_RSI_OVERBOUGHT"
	TagBuyMACDCross       = "BUY_MACD_CROSS"
	TagSellMACDCross      = "SELL_MACD_CROSS"
	TagOverboughtVolatile = "OVERBOUGHT_VOLATILE"
	TagPotentialBreakout  = "POTENTIAL_BREAKOUT"
	TagHold               = "HOLD"
)

// LabelSeparator joins tags in the persisted label string.
const LabelSeparator = ", "

// buyMarker is matched as a substring of the rendered label string.
const buyMarker = "BUY"

// Undefined returns the value used for an indicator that could not be computed.
func Undefined() float64 { return math.NaN() }

// Defined reports whether v holds a usable reading.
func Defined(v float64) bool { return !math.IsNaN(v) }

// IndicatorSnapshot is one observation of an asset's indicators.
// Undefined readings are NaN.
type IndicatorSnapshot struct {
	AssetID      string    `json:"asset_id"`
	Timestamp    time.Time `json:"timestamp"`
	CurrentPrice float64   `json:"current_price"`
	RSI          float64   `json:"rsi"`
	EMA20        float64   `json:"ema_20"`
	MACDDiff     float64   `json:"macd_diff"`
	BBUpper      float64   `json:"bb_upper"`
	BBLower      float64   `json:"bb_lower"`
}

// Evaluable reports whether every reading the rule set needs is defined.
func (s IndicatorSnapshot) Evaluable() bool {
	return Defined(s.CurrentPrice) && Defined(s.RSI) && Defined(s.MACDDiff) &&
		Defined(s.BBUpper) && Defined(s.BBLower)
}

// Labels is the ordered tag list attached to a signal. Order is significant.
type Labels []string

// String renders the label set for persistence; empty renders as HOLD.
func (l Labels) String() string {
	if len(l) == 0 {
		return TagHold
	}
	return strings.Join(l, LabelSeparator)
}

// IsHold reports whether no tag fired.
func (l Labels) IsHold() bool { return len(l) == 0 }

// IsBuy reports whether the rendered label string contains a buy-type tag.
func (l Labels) IsBuy() bool { return strings.Contains(l.String(), buyMarker) }

func (l Labels) MarshalJSON() ([]byte, error) { return json.Marshal(l.String()) }

func (l *Labels) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*l = ParseLabels(s)
	return nil
}

// ParseLabels is the inverse of Labels.String. Blank and HOLD parse to an empty set.
func ParseLabels(s string) Labels {
	s = strings.TrimSpace(s)
	if s == "" || s == TagHold {
		return Labels{}
	}
	parts := strings.Split(s, ",")
	out := make(Labels, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// SignalRecord is the signal derived from one snapshot.
type SignalRecord struct {
	AssetID   string            `json:"asset_id"`
	Timestamp time.Time         `json:"timestamp"`
	Labels    Labels            `json:"signal"`
	Source    IndicatorSnapshot `json:"-"`
}

// PricePoint is one raw price observation.
type PricePoint struct {
	AssetID   string    `json:"asset_id"`
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
}

// BacktestOutcome scores one buy-type signal against the prices that followed it.
type BacktestOutcome struct {
	AssetID        string    `json:"asset_id"`
	SignalTime     time.Time `json:"timestamp"`
	Labels         Labels    `json:"signal"`
	AnchorTime     time.Time `json:"anchor_timestamp"`
	AnchorPrice    float64   `json:"anchor_price"`
	MaxFuturePrice float64   `json:"max_future_price"`
	ReturnPct      float64   `json:"return_pct"`
	Success        bool      `json:"success"`
	WindowLen      int       `json:"window_len"`
}
