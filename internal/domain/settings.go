package domain

// Settings are the site-wide settings managed from the admin back-office.
type Settings struct {
	SiteName                 string `json:"site_name" validate:"required,max=100"`
	SiteDescription          string `json:"site_description" validate:"max=500"`
	AllowComments            bool   `json:"allow_comments"`
	AllowRegistrations       bool   `json:"allow_registrations"`
	RequireEmailVerification bool   `json:"require_email_verification"`
	PostsPerPage             int    `json:"posts_per_page" validate:"min=1,max=100"`
	MaintenanceMode          bool   `json:"maintenance_mode"`
}

// DefaultSettings mirrors the values the settings form starts from when the
// API has none.
func DefaultSettings() Settings {
	return Settings{
		SiteName:                 "Blog Platform",
		SiteDescription:          "A modern blogging platform",
		AllowComments:            true,
		AllowRegistrations:       true,
		RequireEmailVerification: true,
		PostsPerPage:             10,
		MaintenanceMode:          false,
	}
}
