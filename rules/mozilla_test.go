package rules

import (
	"errors"
	"strings"
	"testing"

	"github.com/lonnen/jansky/rule"
)

// canonicalRawCrash mirrors the raw crash shape observed in production
// submissions.
func canonicalRawCrash() map[string]any {
	return map[string]any{
		"uuid":                  testCrashID,
		"ProductName":           "Firefox",
		"ProductID":             "{ec8030f7-c20a-464f-9b0e-13a3a9e97384}",
		"Version":               "12.0",
		"BuildID":               "20120420145725",
		"ReleaseChannel":        "release",
		"Distributor":           "Mozilla",
		"Distributor_version":   "12.0",
		"InstallTime":           "1335439892",
		"StartupTime":           "1336499438",
		"CrashTime":             "1336519554",
		"SecondsSinceLastCrash": "86985",
		"submitted_timestamp":   "2012-05-08T23:26:33.454482+00:00",
		"timestamp":             1336519593.454627,
		"EMCheckCompatibility":  "true",
		"Comments":              "why did my browser crash?  #fail",
		"Email":                 "noreply@mozilla.com",
		"URL":                   "http://www.mozilla.com",
		"Notes": "AdapterVendorID: 0x1002, AdapterDeviceID: 0x7280, " +
			"AdapterSubsysID: 01821043",
		"Winsock_LSP": "MSAFD Tcpip [TCP/IPv6] : 2 : 1 :",
		"Add-ons": "adblockpopups%40jessehakanen.net:0.3," +
			"dmpluginff%40westbyte.com:1%2C4.8," +
			"firebug%40software.joehewitt.com:1.9.1," +
			"{972ce4c6-7e08-4474-a285-3208198ce6fd}:12.0",
	}
}

func TestProductRule(t *testing.T) {
	raw := canonicalRawCrash()
	processed := newProcessed()
	apply(t, ProductRule{}, raw, processed)

	if processed["product"] != "Firefox" {
		t.Errorf("product = %v", processed["product"])
	}
	if processed["version"] != "12.0" {
		t.Errorf("version = %v", processed["version"])
	}
	if processed["productid"] != "{ec8030f7-c20a-464f-9b0e-13a3a9e97384}" {
		t.Errorf("productid = %v", processed["productid"])
	}
	if processed["distributor"] != "Mozilla" {
		t.Errorf("distributor = %v", processed["distributor"])
	}
	if processed["distributor_version"] != "12.0" {
		t.Errorf("distributor_version = %v", processed["distributor_version"])
	}
	if processed["release_channel"] != "release" {
		t.Errorf("release_channel = %v", processed["release_channel"])
	}
	// intentional duplicate of release_channel
	if processed["ReleaseChannel"] != "release" {
		t.Errorf("ReleaseChannel = %v", processed["ReleaseChannel"])
	}
	if processed["build"] != "20120420145725" {
		t.Errorf("build = %v", processed["build"])
	}
}

func TestProductRuleDefaults(t *testing.T) {
	processed := newProcessed()
	apply(t, ProductRule{}, map[string]any{}, processed)

	if processed["product"] != "" {
		t.Errorf("product = %v", processed["product"])
	}
	if processed["distributor"] != nil {
		t.Errorf("distributor = %v", processed["distributor"])
	}
}

func TestProductRewrite(t *testing.T) {
	raw := canonicalRawCrash()
	apply(t, NewProductRewrite(nil), raw, newProcessed())

	if raw["ProductName"] != "FennecAndroid" {
		t.Errorf("ProductName = %v", raw["ProductName"])
	}
}

func TestProductRewriteUnknownID(t *testing.T) {
	raw := canonicalRawCrash()
	raw["ProductID"] = "arbitrary-garbage-from-the-network"
	apply(t, NewProductRewrite(nil), raw, newProcessed())

	if raw["ProductName"] != "Firefox" { // unchanged
		t.Errorf("ProductName = %v", raw["ProductName"])
	}
}

func TestESRVersionRewrite(t *testing.T) {
	raw := map[string]any{"ReleaseChannel": "esr", "Version": "12.0"}
	apply(t, ESRVersionRewrite{}, raw, newProcessed())

	if raw["Version"] != "12.0esr" {
		t.Errorf("Version = %v", raw["Version"])
	}
}

func TestESRVersionRewriteSkipsOtherChannels(t *testing.T) {
	raw := map[string]any{"ReleaseChannel": "release", "Version": "12.0"}
	apply(t, ESRVersionRewrite{}, raw, newProcessed())

	if raw["Version"] != "12.0" {
		t.Errorf("Version = %v", raw["Version"])
	}
}

func TestESRVersionRewriteMissingVersion(t *testing.T) {
	raw := map[string]any{"ReleaseChannel": "esr"}
	err := rule.Apply(ESRVersionRewrite{}, testCrashID, raw, rule.Dumps{}, newProcessed())
	if !errors.Is(err, ErrMissingField) {
		t.Fatalf("err = %v, want ErrMissingField", err)
	}
	if !strings.Contains(err.Error(), `"Version" missing from esr release raw_crash`) {
		t.Errorf("err = %v", err)
	}
}

func TestPluginContentURL(t *testing.T) {
	raw := map[string]any{
		"URL":              "http://original.example",
		"PluginContentURL": "http://plugin.example",
	}
	apply(t, PluginContentURL{}, raw, newProcessed())
	if raw["URL"] != "http://plugin.example" {
		t.Errorf("URL = %v", raw["URL"])
	}

	// absent PluginContentURL leaves URL alone
	raw = map[string]any{"URL": "http://original.example"}
	apply(t, PluginContentURL{}, raw, newProcessed())
	if raw["URL"] != "http://original.example" {
		t.Errorf("URL = %v", raw["URL"])
	}
}

func TestPluginUserComment(t *testing.T) {
	raw := map[string]any{
		"Comments":          "original",
		"PluginUserComment": "plugin said this",
	}
	apply(t, PluginUserComment{}, raw, newProcessed())
	if raw["Comments"] != "plugin said this" {
		t.Errorf("Comments = %v", raw["Comments"])
	}
}

func TestFennecBetaError20150430(t *testing.T) {
	raw := map[string]any{
		"ProductName":    "Fennec",
		"BuildID":        "20150427090529",
		"ReleaseChannel": "release",
	}
	apply(t, FennecBetaError20150430{}, raw, newProcessed())
	if raw["ReleaseChannel"] != "beta" {
		t.Errorf("ReleaseChannel = %v", raw["ReleaseChannel"])
	}
}

func TestFennecBetaError20150430OtherBuilds(t *testing.T) {
	raw := map[string]any{
		"ProductName":    "Fennec",
		"BuildID":        "20150427090530",
		"ReleaseChannel": "release",
	}
	apply(t, FennecBetaError20150430{}, raw, newProcessed())
	if raw["ReleaseChannel"] != "release" {
		t.Errorf("ReleaseChannel = %v", raw["ReleaseChannel"])
	}
}

func TestUserDataRule(t *testing.T) {
	processed := newProcessed()
	apply(t, UserDataRule{}, canonicalRawCrash(), processed)

	if processed["url"] != "http://www.mozilla.com" {
		t.Errorf("url = %v", processed["url"])
	}
	if processed["user_comments"] != "why did my browser crash?  #fail" {
		t.Errorf("user_comments = %v", processed["user_comments"])
	}
	if processed["email"] != "noreply@mozilla.com" {
		t.Errorf("email = %v", processed["email"])
	}
	if processed["user_id"] != "" {
		t.Errorf("user_id = %v", processed["user_id"])
	}
}

func TestEnvironmentRule(t *testing.T) {
	processed := newProcessed()
	apply(t, EnvironmentRule{}, canonicalRawCrash(), processed)
	if !strings.HasPrefix(processed["app_notes"].(string), "AdapterVendorID: 0x1002") {
		t.Errorf("app_notes = %v", processed["app_notes"])
	}

	processed = newProcessed()
	apply(t, EnvironmentRule{}, map[string]any{}, processed)
	if processed["app_notes"] != "" {
		t.Errorf("app_notes default = %v", processed["app_notes"])
	}
}

func TestPluginRuleHang(t *testing.T) {
	raw := map[string]any{
		"uuid":           testCrashID,
		"PluginHang":     1,
		"Hang":           0,
		"ProcessType":    "plugin",
		"PluginFilename": "NPSWF32.dll",
		"PluginName":     "Shockwave Flash",
		"PluginVersion":  "11.2.202.235",
	}
	processed := newProcessed()
	apply(t, PluginRule{}, raw, processed)

	if processed["hangid"] != "fake-"+testCrashID {
		t.Errorf("hangid = %v", processed["hangid"])
	}
	if processed["hang_type"] != int64(-1) {
		t.Errorf("hang_type = %v", processed["hang_type"])
	}
	if processed["process_type"] != "plugin" {
		t.Errorf("process_type = %v", processed["process_type"])
	}
	if processed["PluginFilename"] != "NPSWF32.dll" {
		t.Errorf("PluginFilename = %v", processed["PluginFilename"])
	}
	if processed["PluginName"] != "Shockwave Flash" {
		t.Errorf("PluginName = %v", processed["PluginName"])
	}
	if processed["PluginVersion"] != "11.2.202.235" {
		t.Errorf("PluginVersion = %v", processed["PluginVersion"])
	}
}

func TestPluginRuleBrowserHang(t *testing.T) {
	raw := map[string]any{
		"uuid":   testCrashID,
		"Hang":   1,
		"HangID": "hang-123",
	}
	processed := newProcessed()
	apply(t, PluginRule{}, raw, processed)

	if processed["hang_type"] != int64(1) {
		t.Errorf("hang_type = %v", processed["hang_type"])
	}
	if processed["hangid"] != "hang-123" {
		t.Errorf("hangid = %v", processed["hangid"])
	}
}

func TestPluginRuleNormalCrash(t *testing.T) {
	processed := newProcessed()
	apply(t, PluginRule{}, map[string]any{"uuid": testCrashID}, processed)

	if processed["hang_type"] != int64(0) {
		t.Errorf("hang_type = %v", processed["hang_type"])
	}
	if processed["hangid"] != nil {
		t.Errorf("hangid = %v", processed["hangid"])
	}
	// non-plugin process: plugin fields must not appear
	if _, ok := processed["PluginFilename"]; ok {
		t.Error("PluginFilename set for non-plugin crash")
	}
}

func TestAddonsRule(t *testing.T) {
	processed := newProcessed()
	apply(t, NewAddonsRule(nil), canonicalRawCrash(), processed)

	if processed["addons_checked"] != true {
		t.Errorf("addons_checked = %v", processed["addons_checked"])
	}
	addons := processed["addons"].([][2]string)
	if len(addons) != 4 {
		t.Fatalf("addons = %v", addons)
	}
	if addons[0] != [2]string{"adblockpopups@jessehakanen.net", "0.3"} {
		t.Errorf("addons[0] = %v", addons[0])
	}
	// %2C decodes to a comma inside the version
	if addons[1] != [2]string{"dmpluginff@westbyte.com", "1,4.8"} {
		t.Errorf("addons[1] = %v", addons[1])
	}
	if addons[3] != [2]string{"{972ce4c6-7e08-4474-a285-3208198ce6fd}", "12.0"} {
		t.Errorf("addons[3] = %v", addons[3])
	}
}

func TestAddonsRuleBadPair(t *testing.T) {
	raw := map[string]any{"Add-ons": "naked-addon-no-version"}
	processed := newProcessed()
	apply(t, NewAddonsRule(nil), raw, processed)

	addons := processed["addons"].([][2]string)
	if len(addons) != 1 || addons[0] != [2]string{"naked-addon-no-version", ""} {
		t.Errorf("addons = %v", addons)
	}
	notes := rule.Notes(processed)
	if len(notes) != 1 || !strings.Contains(notes[0], "bad name and/or version") {
		t.Errorf("notes = %v", notes)
	}
}

func TestAddonsRuleNoAddons(t *testing.T) {
	processed := newProcessed()
	apply(t, NewAddonsRule(nil), map[string]any{}, processed)

	if processed["addons_checked"] != false {
		t.Errorf("addons_checked = %v", processed["addons_checked"])
	}
	if len(processed["addons"].([][2]string)) != 0 {
		t.Errorf("addons = %v", processed["addons"])
	}
}

func TestJavaProcessRule(t *testing.T) {
	raw := map[string]any{"JavaStackTrace": "java.lang.NullPointerException"}
	processed := newProcessed()
	apply(t, JavaProcessRule{}, raw, processed)
	if processed["java_stack_trace"] != "java.lang.NullPointerException" {
		t.Errorf("java_stack_trace = %v", processed["java_stack_trace"])
	}

	// absent: the nil default is written back into the raw crash too
	raw = map[string]any{}
	processed = newProcessed()
	apply(t, JavaProcessRule{}, raw, processed)
	if processed["java_stack_trace"] != nil {
		t.Errorf("java_stack_trace = %v", processed["java_stack_trace"])
	}
	if v, ok := raw["JavaStackTrace"]; !ok || v != nil {
		t.Errorf("raw JavaStackTrace = %v, %v", v, ok)
	}
}

func TestWinsockLSPRule(t *testing.T) {
	processed := newProcessed()
	apply(t, WinsockLSPRule{}, canonicalRawCrash(), processed)
	if processed["Winsock_LSP"] != "MSAFD Tcpip [TCP/IPv6] : 2 : 1 :" {
		t.Errorf("Winsock_LSP = %v", processed["Winsock_LSP"])
	}

	processed = newProcessed()
	apply(t, WinsockLSPRule{}, map[string]any{}, processed)
	if processed["Winsock_LSP"] != nil {
		t.Errorf("Winsock_LSP default = %v", processed["Winsock_LSP"])
	}
}

func TestExploitabilityRule(t *testing.T) {
	processed := newProcessed()
	processed["json_dump"] = map[string]any{
		"sensitive": map[string]any{"exploitability": "high"},
	}
	apply(t, ExploitabilityRule{}, map[string]any{}, processed)
	if processed["exploitability"] != "high" {
		t.Errorf("exploitability = %v", processed["exploitability"])
	}
}

func TestExploitabilityRuleMissing(t *testing.T) {
	processed := newProcessed()
	apply(t, ExploitabilityRule{}, map[string]any{}, processed)

	if processed["exploitability"] != "unknown" {
		t.Errorf("exploitability = %v", processed["exploitability"])
	}
	notes := rule.Notes(processed)
	if len(notes) != 1 || notes[0] != "exploitability information missing" {
		t.Errorf("notes = %v", notes)
	}
}

func TestTopMostFilesRule(t *testing.T) {
	processed := newProcessed()
	processed["json_dump"] = map[string]any{
		"crash_info": map[string]any{"crashing_thread": float64(0)},
		"threads": []any{
			map[string]any{
				"frames": []any{
					map[string]any{"source": "not-a-file"},
					map[string]any{"file": "nsTerminator.cpp"},
					map[string]any{"file": "later.cpp"},
				},
			},
		},
	}
	apply(t, TopMostFilesRule{}, map[string]any{}, processed)

	if processed["topmost_filenames"] != "nsTerminator.cpp" {
		t.Errorf("topmost_filenames = %v", processed["topmost_filenames"])
	}
}

func TestTopMostFilesRuleMissingDump(t *testing.T) {
	processed := newProcessed()
	apply(t, TopMostFilesRule{}, map[string]any{}, processed)

	if processed["topmost_filenames"] != nil {
		t.Errorf("topmost_filenames = %v", processed["topmost_filenames"])
	}
	notes := rule.Notes(processed)
	if len(notes) != 1 || !strings.Contains(notes[0], "'json_dump' is missing") {
		t.Errorf("notes = %v", notes)
	}
}

func TestTopMostFilesRuleNoFrameWithFile(t *testing.T) {
	processed := newProcessed()
	processed["json_dump"] = map[string]any{
		"crash_info": map[string]any{"crashing_thread": float64(0)},
		"threads": []any{
			map[string]any{"frames": []any{map[string]any{"source": "s"}}},
		},
	}
	apply(t, TopMostFilesRule{}, map[string]any{}, processed)
	if processed["topmost_filenames"] != nil {
		t.Errorf("topmost_filenames = %v", processed["topmost_filenames"])
	}
}

func TestThemePrettyNameRule(t *testing.T) {
	processed := newProcessed()
	processed["addons"] = [][2]string{
		{"adblockpopups@jessehakanen.net", "0.3"},
		{"{972ce4c6-7e08-4474-a285-3208198ce6fd}", "12.0"},
	}
	apply(t, ThemePrettyNameRule{}, map[string]any{}, processed)

	addons := processed["addons"].([][2]string)
	if addons[1][0] != "{972ce4c6-7e08-4474-a285-3208198ce6fd} (default theme)" {
		t.Errorf("addons[1] = %v", addons[1])
	}
	if addons[1][1] != "12.0" {
		t.Errorf("version rewritten: %v", addons[1])
	}
	if addons[0][0] != "adblockpopups@jessehakanen.net" {
		t.Errorf("unrelated addon rewritten: %v", addons[0])
	}
}

func TestThemePrettyNameRulePredicateFalseWithoutTheme(t *testing.T) {
	processed := newProcessed()
	processed["addons"] = [][2]string{{"someaddon@example.com", "1.0"}}

	r := ThemePrettyNameRule{}
	if r.Predicate(testCrashID, map[string]any{}, rule.Dumps{}, processed) {
		t.Error("predicate matched without the theme id")
	}
}
