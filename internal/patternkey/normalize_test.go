package patternkey

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeLegacyKeys(t *testing.T) {
	tests := []struct {
		key  string
		cms  string
		want string
	}{
		{"robots_disallow_wp_admin", "WordPress", "robots_disallow_wordpress"},
		{"url_wp_content_path", "WordPress", "url_content_wordpress"},
		{"js_global_wp_emoji_settings", "WordPress", "js_emoji_wordpress"},
		{"file_wp_json_api", "WordPress", "file_api_wordpress"},
		{"header_link_wordpress_api", "WordPress", "header_api_wordpress"},
		{"url_content_path_drupal_theme", "Drupal", "url_content_drupal"},
		{"js_global_drupal_settings", "Drupal", "js_settings_drupal"},
		{"url_media_content_path", "Joomla", "url_content_joomla"},
		{"css_class_joomla_template", "Joomla", "css_template_joomla"},
		{"js_global_dm_api", "Duda", "js_api_duda"},
		{"meta_og_type_website", "Duda", "meta_og_duda"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.key, tt.cms))
		})
	}
}

func TestNormalizeCanonicalKeysUntouched(t *testing.T) {
	for _, key := range []string{
		"meta_generator_wordpress",
		"header_api_wordpress",
		"js_settings_drupal",
		"url_cdn_duda",
	} {
		assert.Equal(t, key, Normalize(key, "WordPress"))
	}
}

func TestNormalizeCollapsesLongKeys(t *testing.T) {
	tests := []struct {
		key  string
		cms  string
		want string
	}{
		{"url_wp_content_uploads_path", "WordPress", "url_content_wordpress"},
		{"header_x_generator_value_drupal", "Drupal", "header_x_generator_value_drupal"},
	}
	for _, tt := range tests {
		got := Normalize(tt.key, tt.cms)
		assert.Equal(t, tt.want, got)
	}
}

func TestNormalizeUnknownShapeUnchanged(t *testing.T) {
	for _, key := range []string{
		"generator",
		"bogus_source_key",
		"totally_unknown_four_parts",
	} {
		assert.Equal(t, key, Normalize(key, "WordPress"))
	}
}

func TestIsCanonical(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"meta_generator_wordpress", true},
		{"header_api_wordpress", true},
		{"robots_disallow_drupal", true},
		{"meta_generator", false},
		{"bogus_generator_wordpress", false},
		{"url_wp_content_path", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsCanonical(tt.key), tt.key)
	}
}

func TestAuditCompliance(t *testing.T) {
	report := AuditCompliance([]string{
		"meta_generator_wordpress",
		"js_settings_drupal",
		"url_wp_content_path",
		"bogus_generator_wordpress",
	})

	assert.Len(t, report.Compliant, 2)
	assert.Len(t, report.NonCompliant, 2)
	assert.InDelta(t, 0.5, report.Rate, 1e-9)

	reasons := map[string]string{}
	for _, issue := range report.NonCompliant {
		reasons[issue.Key] = issue.Reason
	}
	assert.Contains(t, reasons["url_wp_content_path"], "parts")
	assert.Contains(t, reasons["bogus_generator_wordpress"], "invalid source")
}

func TestAuditComplianceEmpty(t *testing.T) {
	report := AuditCompliance(nil)
	assert.Zero(t, report.Rate)
	assert.Empty(t, report.Compliant)
}
