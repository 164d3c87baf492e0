package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/Veraticus/order-tagger/internal/common"
	"github.com/Veraticus/order-tagger/internal/model"
)

// Viper keys for tagger options.
const (
	KeyDaysWindow                      = "tagger.days_window"
	KeySymmetricWindow                 = "tagger.symmetric_window"
	KeyAmountTolerance                 = "tagger.amount_tolerance"
	KeyItemizeAlways                   = "tagger.verbose_itemize"
	KeyNoItemize                       = "tagger.no_itemize"
	KeySummarizeSingleItem             = "tagger.summarize_single_item"
	KeyForceRetag                      = "tagger.retag_changed"
	KeyConfirmRetag                    = "tagger.prompt_retag"
	KeyNoTagCategories                 = "tagger.no_tag_categories"
	KeyNoPredictCategories             = "tagger.do_not_predict_categories"
	KeyDescriptionPrefixOverride       = "tagger.description_prefix_override"
	KeyDescriptionRefundPrefixOverride = "tagger.description_refund_prefix_override"
	KeyMerchantDomains                 = "tagger.merchant_domains"
	KeyMerchantFilter                  = "tagger.merchant_filter"
	KeyCategoryFilter                  = "tagger.category_filter"
	KeyCategoryRules                   = "tagger.category_rules"
	KeyNumUpdates                      = "tagger.num_updates"
	KeyCombineSameDayOrders            = "tagger.combine_same_day_orders"
	KeyMatchShipments                  = "tagger.match_shipments"
	KeyDatabasePath                    = "database.path"
	KeyBackupDir                       = "database.backup_dir"
)

// DefaultMerchantDomains are the storefront names written in report Website columns.
var DefaultMerchantDomains = []string{
	"Amazon.com",
	"smile.amazon.com",
	"amazon.ca",
	"amazon.co.uk",
	"amazon.com.au",
	"amazon.de",
}

// DefaultMerchantFilter selects ledger transactions from the merchant.
var DefaultMerchantFilter = []string{"amazon", "amzn"}

// Options holds every tagger option.
type Options struct {
	CategoryRules                   map[string]string
	DescriptionPrefixOverride       string
	DescriptionRefundPrefixOverride string
	MerchantDomains                 []string
	MerchantFilter                  []string
	CategoryFilter                  []string
	DaysWindow                      int
	AmountTolerance                 model.Micro
	NumUpdates                      int
	SymmetricWindow                 bool
	ItemizeAlways                   bool
	NoItemize                       bool
	SummarizeSingleItem             bool
	ForceRetag                      bool
	ConfirmRetag                    bool
	NoTagCategories                 bool
	NoPredictCategories             bool
	CombineSameDayOrders            bool
	MatchShipments                  bool
}

// Defaults returns the default options.
func Defaults() Options {
	return Options{
		DaysWindow:           3,
		SummarizeSingleItem:  true,
		CombineSameDayOrders: true,
		MatchShipments:       true,
		MerchantDomains:      append([]string(nil), DefaultMerchantDomains...),
		MerchantFilter:       append([]string(nil), DefaultMerchantFilter...),
	}
}

// SetDefaults registers option defaults on v.
func SetDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault(KeyDaysWindow, d.DaysWindow)
	v.SetDefault(KeySymmetricWindow, d.SymmetricWindow)
	v.SetDefault(KeyAmountTolerance, "0")
	v.SetDefault(KeySummarizeSingleItem, d.SummarizeSingleItem)
	v.SetDefault(KeyCombineSameDayOrders, d.CombineSameDayOrders)
	v.SetDefault(KeyMatchShipments, d.MatchShipments)
	v.SetDefault(KeyMerchantDomains, d.MerchantDomains)
	v.SetDefault(KeyMerchantFilter, d.MerchantFilter)
	v.SetDefault(KeyDatabasePath, DefaultDatabasePath())
}

// Load reads options from v and validates them.
func Load(v *viper.Viper) (Options, error) {
	tolerance, err := model.ParseMicro(v.GetString(KeyAmountTolerance))
	if err != nil {
		return Options{}, fmt.Errorf("%w: %s: %w", common.ErrInvalidConfig, KeyAmountTolerance, err)
	}

	opts := Options{
		DaysWindow:                      v.GetInt(KeyDaysWindow),
		SymmetricWindow:                 v.GetBool(KeySymmetricWindow),
		AmountTolerance:                 tolerance,
		ItemizeAlways:                   v.GetBool(KeyItemizeAlways),
		NoItemize:                       v.GetBool(KeyNoItemize),
		SummarizeSingleItem:             v.GetBool(KeySummarizeSingleItem),
		ForceRetag:                      v.GetBool(KeyForceRetag),
		ConfirmRetag:                    v.GetBool(KeyConfirmRetag),
		NoTagCategories:                 v.GetBool(KeyNoTagCategories),
		NoPredictCategories:             v.GetBool(KeyNoPredictCategories),
		DescriptionPrefixOverride:       v.GetString(KeyDescriptionPrefixOverride),
		DescriptionRefundPrefixOverride: v.GetString(KeyDescriptionRefundPrefixOverride),
		MerchantDomains:                 splitList(v.GetStringSlice(KeyMerchantDomains)),
		MerchantFilter:                  splitList(v.GetStringSlice(KeyMerchantFilter)),
		CategoryFilter:                  splitList(v.GetStringSlice(KeyCategoryFilter)),
		CategoryRules:                   v.GetStringMapString(KeyCategoryRules),
		NumUpdates:                      v.GetInt(KeyNumUpdates),
		CombineSameDayOrders:            v.GetBool(KeyCombineSameDayOrders),
		MatchShipments:                  v.GetBool(KeyMatchShipments),
	}
	if len(opts.MerchantDomains) == 0 {
		opts.MerchantDomains = append([]string(nil), DefaultMerchantDomains...)
	}

	if err := opts.Validate(); err != nil {
		return Options{}, err
	}
	return opts, nil
}

// Validate checks option consistency.
func (o Options) Validate() error {
	if o.DaysWindow < 0 {
		return fmt.Errorf("%w: days window must not be negative, got %d", common.ErrInvalidConfig, o.DaysWindow)
	}
	if o.AmountTolerance < 0 {
		return fmt.Errorf("%w: amount tolerance must not be negative, got %s", common.ErrInvalidConfig, o.AmountTolerance)
	}
	if o.NumUpdates < 0 {
		return fmt.Errorf("%w: num updates must not be negative, got %d", common.ErrInvalidConfig, o.NumUpdates)
	}
	if o.ItemizeAlways && o.NoItemize {
		return fmt.Errorf("%w: verbose itemize and no itemize are mutually exclusive", common.ErrInvalidConfig)
	}
	return nil
}

// splitList accepts both list values and a single comma separated value, as
// environment variables deliver.
func splitList(in []string) []string {
	var out []string
	for _, v := range in {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
