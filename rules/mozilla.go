package rules

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/lonnen/jansky/rule"
	"github.com/lonnen/jansky/types"
)

// ProductRewrite maps a raw crash ProductID to a ProductName using a
// lookup table. If a product should not be rewritten it should not be in
// the table.
type ProductRewrite struct {
	logger       *zap.Logger
	productIDMap map[string]string
}

// NewProductRewrite builds the rule with the default product id table.
func NewProductRewrite(logger *zap.Logger) *ProductRewrite {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProductRewrite{
		logger: logger,
		productIDMap: map[string]string{
			"{ec8030f7-c20a-464f-9b0e-13a3a9e97384}": "FennecAndroid",
			"{ec8030f7-c20a-464f-9b0e-13b3a9e97384}": "Chrome",
			"{ec8030f7-c20a-464f-9b0e-13c3a9e97384}": "Safari",
		},
	}
}

func (r *ProductRewrite) Predicate(crashID string, raw map[string]any, dumps rule.Dumps, processed map[string]any) bool {
	v, ok := raw["ProductID"]
	if !ok {
		return false
	}
	_, mapped := r.productIDMap[types.AsString(v)]
	return mapped
}

func (r *ProductRewrite) Action(crashID string, raw map[string]any, dumps rule.Dumps, processed map[string]any) error {
	productID := types.AsString(raw["ProductID"])
	oldName := types.AsString(raw["ProductName"])
	newName := r.productIDMap[productID]

	raw["ProductName"] = newName

	r.logger.Debug("product name changed",
		zap.String("old", oldName),
		zap.String("new", newName),
		zap.String("productid", productID),
	)
	return nil
}

// ESRVersionRewrite rewrites the version to denote esr builds where
// appropriate.
type ESRVersionRewrite struct{}

func (ESRVersionRewrite) Predicate(crashID string, raw map[string]any, dumps rule.Dumps, processed map[string]any) bool {
	return types.AsString(raw["ReleaseChannel"]) == "esr"
}

func (ESRVersionRewrite) Action(crashID string, raw map[string]any, dumps rule.Dumps, processed map[string]any) error {
	v, ok := raw["Version"]
	if !ok {
		return fmt.Errorf(`%w: "Version" missing from esr release raw_crash`, ErrMissingField)
	}
	raw["Version"] = types.AsString(v) + "esr"
	return nil
}

// PluginContentURL overwrites 'URL' with 'PluginContentURL' if it exists.
type PluginContentURL struct{}

func (PluginContentURL) Predicate(crashID string, raw map[string]any, dumps rule.Dumps, processed map[string]any) bool {
	_, ok := raw["PluginContentURL"]
	return ok
}

func (PluginContentURL) Action(crashID string, raw map[string]any, dumps rule.Dumps, processed map[string]any) error {
	raw["URL"] = raw["PluginContentURL"]
	return nil
}

// PluginUserComment replaces the top level 'Comments' with
// 'PluginUserComment' if it exists.
type PluginUserComment struct{}

func (PluginUserComment) Predicate(crashID string, raw map[string]any, dumps rule.Dumps, processed map[string]any) bool {
	_, ok := raw["PluginUserComment"]
	return ok
}

func (PluginUserComment) Action(crashID string, raw map[string]any, dumps rule.Dumps, processed map[string]any) error {
	raw["Comments"] = raw["PluginUserComment"]
	return nil
}

// FennecBetaError20150430 corrects the release channel for Fennec build
// 20150427090529, which shipped tagged as a release build.
type FennecBetaError20150430 struct{}

func (FennecBetaError20150430) Predicate(crashID string, raw map[string]any, dumps rule.Dumps, processed map[string]any) bool {
	return strings.HasPrefix(types.AsString(raw["ProductName"]), "Fennec") &&
		types.AsString(raw["BuildID"]) == "20150427090529" &&
		types.AsString(raw["ReleaseChannel"]) == "release"
}

func (FennecBetaError20150430) Action(crashID string, raw map[string]any, dumps rule.Dumps, processed map[string]any) error {
	raw["ReleaseChannel"] = "beta"
	return nil
}

// ProductRule transfers product-related properties from the raw to the
// processed crash, filling in with empty defaults where absent.
type ProductRule struct{}

func (ProductRule) Predicate(string, map[string]any, rule.Dumps, map[string]any) bool { return true }

func (ProductRule) Action(crashID string, raw map[string]any, dumps rule.Dumps, processed map[string]any) error {
	processed["product"] = types.AsString(raw["ProductName"])
	processed["version"] = types.AsString(raw["Version"])
	processed["productid"] = types.AsString(raw["ProductID"])
	processed["distributor"] = valueOrNil(raw, "Distributor")
	processed["distributor_version"] = valueOrNil(raw, "Distributor_version")
	processed["release_channel"] = types.AsString(raw["ReleaseChannel"])
	// redundant, but exactly matches what older processors emitted
	processed["ReleaseChannel"] = types.AsString(raw["ReleaseChannel"])
	processed["build"] = types.AsString(raw["BuildID"])
	return nil
}

// UserDataRule copies user-supplied data from the raw crash to the
// processed crash.
type UserDataRule struct{}

func (UserDataRule) Predicate(string, map[string]any, rule.Dumps, map[string]any) bool { return true }

func (UserDataRule) Action(crashID string, raw map[string]any, dumps rule.Dumps, processed map[string]any) error {
	processed["url"] = valueOrNil(raw, "URL")
	processed["user_comments"] = valueOrNil(raw, "Comments")
	processed["email"] = valueOrNil(raw, "Email")
	processed["user_id"] = ""
	return nil
}

// EnvironmentRule moves the Notes from the raw crash to the processed
// crash.
type EnvironmentRule struct{}

func (EnvironmentRule) Predicate(string, map[string]any, rule.Dumps, map[string]any) bool {
	return true
}

func (EnvironmentRule) Action(crashID string, raw map[string]any, dumps rule.Dumps, processed map[string]any) error {
	processed["app_notes"] = types.AsString(raw["Notes"])
	return nil
}

// PluginRule detects and notes hangs, sometimes hangs in plugins.
type PluginRule struct{}

func (PluginRule) Predicate(string, map[string]any, rule.Dumps, map[string]any) bool { return true }

func (PluginRule) Action(crashID string, raw map[string]any, dumps rule.Dumps, processed map[string]any) error {
	processed["hangid"] = valueOrNil(raw, "HangID")

	if types.Truthy(raw["PluginHang"]) {
		processed["hangid"] = "fake-" + types.AsString(raw["uuid"])
	}

	hangType := int64(0) // normal crash, not a hang
	if types.Truthy(raw["Hang"]) {
		hangType = 1 // browser hang
	} else if types.Truthy(raw["HangID"]) || types.Truthy(processed["hangid"]) {
		hangType = -1 // plugin hang
	}
	processed["hang_type"] = hangType

	processed["process_type"] = valueOrNil(raw, "ProcessType")

	if types.AsString(processed["process_type"]) != "plugin" {
		return nil
	}

	processed["PluginFilename"] = types.AsString(raw["PluginFilename"])
	processed["PluginName"] = types.AsString(raw["PluginName"])
	processed["PluginVersion"] = types.AsString(raw["PluginVersion"])
	return nil
}

// AddonsRule transforms add-on information into a useful form: a list of
// (extension, version) pairs with both halves URL-decoded.
type AddonsRule struct {
	logger *zap.Logger
}

// NewAddonsRule builds the rule; a nil logger disables debug output.
func NewAddonsRule(logger *zap.Logger) *AddonsRule {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AddonsRule{logger: logger}
}

func (r *AddonsRule) Predicate(string, map[string]any, rule.Dumps, map[string]any) bool { return true }

func (r *AddonsRule) Action(crashID string, raw map[string]any, dumps rule.Dumps, processed map[string]any) error {
	checked := strings.ToLower(types.AsString(raw["EMCheckCompatibility"]))
	processed["addons_checked"] = checked == "true"

	original := types.AsString(raw["Add-ons"])
	if original == "" {
		r.logger.Debug("no addons", zap.String("crash_id", crashID))
		processed["addons"] = [][2]string{}
		return nil
	}

	pairs := strings.Split(original, ",")
	addons := make([][2]string, 0, len(pairs))
	for _, pair := range pairs {
		name, version, found := strings.Cut(pair, ":")
		if !found {
			rule.AddNote(processed, fmt.Sprintf("add-on \"%s\" is a bad name and/or version", pair))
			version = ""
		}
		addons = append(addons, [2]string{unquotePlus(name), unquotePlus(version)})
	}
	processed["addons"] = addons
	return nil
}

// JavaProcessRule copies or initializes the java_stack_trace.
type JavaProcessRule struct{}

func (JavaProcessRule) Predicate(string, map[string]any, rule.Dumps, map[string]any) bool {
	return true
}

func (JavaProcessRule) Action(crashID string, raw map[string]any, dumps rule.Dumps, processed map[string]any) error {
	v, ok := raw["JavaStackTrace"]
	if !ok {
		// the default is written back into the raw crash as well
		raw["JavaStackTrace"] = nil
		v = nil
	}
	processed["java_stack_trace"] = v
	return nil
}

// WinsockLSPRule copies over the Winsock_LSP field if it exists.
type WinsockLSPRule struct{}

func (WinsockLSPRule) Predicate(string, map[string]any, rule.Dumps, map[string]any) bool { return true }

func (WinsockLSPRule) Action(crashID string, raw map[string]any, dumps rule.Dumps, processed map[string]any) error {
	processed["Winsock_LSP"] = valueOrNil(raw, "Winsock_LSP")
	return nil
}

// ExploitabilityRule lifts exploitability out of the dump and into
// top-level fields.
type ExploitabilityRule struct{}

func (ExploitabilityRule) Predicate(string, map[string]any, rule.Dumps, map[string]any) bool {
	return true
}

func (ExploitabilityRule) Action(crashID string, raw map[string]any, dumps rule.Dumps, processed map[string]any) error {
	v, _, ok := dig(processed, "json_dump", "sensitive", "exploitability")
	if !ok {
		processed["exploitability"] = "unknown"
		rule.AddNote(processed, "exploitability information missing")
		return nil
	}
	processed["exploitability"] = v
	return nil
}

// TopMostFilesRule extracts the source file of the first frame in the
// crashing thread that carries one.
//
// Originating from Bug 519703, topmost_filenames was allowed to hold a
// list "for flex" but in all the years it existed only ever carried one
// value, sometimes as a bare value and sometimes as a one-item list.
// This rule avoids the list entirely and gives one single value; the
// plural destination name is unfortunate but fixed by consumers.
type TopMostFilesRule struct{}

func (TopMostFilesRule) Predicate(string, map[string]any, rule.Dumps, map[string]any) bool {
	return true
}

func (TopMostFilesRule) Action(crashID string, raw map[string]any, dumps rule.Dumps, processed map[string]any) error {
	processed["topmost_filenames"] = nil

	idxVal, key, ok := dig(processed, "json_dump", "crash_info", "crashing_thread")
	if !ok {
		rule.AddNote(processed, fmt.Sprintf("no 'topmost_file' name because '%s' is missing", key))
		return nil
	}
	idx, ok := types.AsInt64(idxVal)
	if !ok {
		rule.AddNote(processed, "no 'topmost_file' name because 'crashing_thread' is missing")
		return nil
	}

	threadsVal, key, ok := dig(processed, "json_dump", "threads")
	if !ok {
		rule.AddNote(processed, fmt.Sprintf("no 'topmost_file' name because '%s' is missing", key))
		return nil
	}
	threads := types.List(threadsVal)
	if idx < 0 || idx >= int64(len(threads)) {
		return fmt.Errorf("crashing_thread %d out of range (%d threads)", idx, len(threads))
	}

	framesVal, ok := types.Mapping(threads[idx])["frames"]
	if !ok {
		rule.AddNote(processed, "no 'topmost_file' name because 'frames' is missing")
		return nil
	}

	for _, frameVal := range types.List(framesVal) {
		frame := types.Mapping(frameVal)
		if file := frame["file"]; types.Truthy(file) {
			processed["topmost_filenames"] = file
			return nil
		}
	}
	return nil
}

// themeConversions maps internal theme ids to identifiable names.
var themeConversions = map[string]string{
	"{972ce4c6-7e08-4474-a285-3208198ce6fd}": "{972ce4c6-7e08-4474-a285-3208198ce6fd} (default theme)",
}

// ThemePrettyNameRule rewrites the Firefox default theme's internal id
// into an identifiable name, like other built-in extensions. The id
// itself is not easy to change and is referenced by other software.
//
// Must run after AddonsRule.
type ThemePrettyNameRule struct{}

func (ThemePrettyNameRule) Predicate(crashID string, raw map[string]any, dumps rule.Dumps, processed map[string]any) bool {
	for _, pair := range addonPairs(processed) {
		if _, ok := themeConversions[pair[0]]; ok {
			return true
		}
	}
	return false
}

func (ThemePrettyNameRule) Action(crashID string, raw map[string]any, dumps rule.Dumps, processed map[string]any) error {
	addons := addonPairs(processed)
	for i, pair := range addons {
		if pretty, ok := themeConversions[pair[0]]; ok {
			addons[i] = [2]string{pretty, pair[1]}
		}
	}
	processed["addons"] = addons
	return nil
}

// addonPairs normalizes the addons value into (extension, version)
// pairs. AddonsRule writes [][2]string; a processed crash reloaded from
// storage carries a generic list instead.
func addonPairs(processed map[string]any) [][2]string {
	switch t := processed["addons"].(type) {
	case [][2]string:
		return t
	case []any:
		pairs := make([][2]string, 0, len(t))
		for _, e := range t {
			parts := types.List(e)
			var pair [2]string
			if len(parts) > 0 {
				pair[0] = types.AsString(parts[0])
			}
			if len(parts) > 1 {
				pair[1] = types.AsString(parts[1])
			}
			pairs = append(pairs, pair)
		}
		return pairs
	default:
		return nil
	}
}
