package position

type Author struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Info is the static identity of the provider.
type Info struct {
	Name           string   `json:"name"`
	NameID         string   `json:"name_id"`
	GUIString      string   `json:"gui_string"`
	Version        string   `json:"version"`
	Description    string   `json:"description"`
	CopyrightYears string   `json:"copyright_years"`
	Authors        []Author `json:"authors"`
}

func (p *Provider) Name() string      { return "X-Plane position provider Plugin" }
func (p *Provider) NameID() string    { return "xplane" }
func (p *Provider) GUIString() string { return "X-Plane" }
func (p *Provider) Version() string   { return "1.0" }
func (p *Provider) Description() string {
	return "Reports the position of the running X-Plane application."
}
func (p *Provider) CopyrightYears() string { return "2019" }

func (p *Provider) Authors() []Author {
	return []Author{
		{Name: "Emmanuel Pescosta", Email: "emmanuelpescosta099@gmail.com"},
	}
}

func (p *Provider) Info() Info {
	return Info{
		Name:           p.Name(),
		NameID:         p.NameID(),
		GUIString:      p.GUIString(),
		Version:        p.Version(),
		Description:    p.Description(),
		CopyrightYears: p.CopyrightYears(),
		Authors:        p.Authors(),
	}
}
