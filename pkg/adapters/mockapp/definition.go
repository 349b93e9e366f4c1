package mockapp

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Definition describes a fake application: a menu tree, case lists and forms.
type Definition struct {
	Name      string               `yaml:"name"`
	Domain    string               `yaml:"domain"`
	AppID     string               `yaml:"app_id"`
	Menu      []Command            `yaml:"menu"`
	CaseLists map[string]*CaseList `yaml:"case_lists"`
	Forms     map[string]*Form     `yaml:"forms"`
}

// Command is a menu entry. Exactly one target is set.
type Command struct {
	Text     string    `yaml:"text"`
	Menu     []Command `yaml:"menu,omitempty"`
	CaseList string    `yaml:"case_list,omitempty"`
	Form     string    `yaml:"form,omitempty"`
}

// CaseList shows the cases of one type. Selecting a case opens Form, or Menu.
type CaseList struct {
	Columns []string  `yaml:"columns"`
	Search  []string  `yaml:"search,omitempty"`
	Form    string    `yaml:"form,omitempty"`
	Menu    []Command `yaml:"menu,omitempty"`
	Cases   []Case    `yaml:"cases,omitempty"`
}

// Case is one record of a case list.
type Case struct {
	ID         string            `yaml:"id"`
	Properties map[string]string `yaml:"properties"`
}

// Form is a flat list of questions.
type Form struct {
	Title string `yaml:"title"`
	// CreatesCase names the case list a submission adds a case to.
	CreatesCase string     `yaml:"creates_case,omitempty"`
	Questions   []Question `yaml:"questions"`
}

// Question is one form field. Datatype "info" is a read-only label.
type Question struct {
	ID       string   `yaml:"id"`
	Caption  string   `yaml:"caption"`
	Datatype string   `yaml:"datatype"`
	Required bool     `yaml:"required,omitempty"`
	Choices  []string `yaml:"choices,omitempty"`
}

// LoadFile reads a definition from a YAML file.
func LoadFile(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read app definition: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML definition.
func Parse(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to parse app definition: %w", err)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// Validate checks that every reference resolves.
func (d *Definition) Validate() error {
	if len(d.Menu) == 0 {
		return fmt.Errorf("app %q: empty root menu", d.Name)
	}
	if err := d.validateMenu("menu", d.Menu); err != nil {
		return err
	}
	for name, list := range d.CaseLists {
		if list.Form != "" && d.Forms[list.Form] == nil {
			return fmt.Errorf("case list %q: unknown form %q", name, list.Form)
		}
		if err := d.validateMenu("case list "+name, list.Menu); err != nil {
			return err
		}
	}
	for name, form := range d.Forms {
		if form.CreatesCase != "" && d.CaseLists[form.CreatesCase] == nil {
			return fmt.Errorf("form %q: unknown case list %q", name, form.CreatesCase)
		}
	}
	return nil
}

func (d *Definition) validateMenu(path string, menu []Command) error {
	for _, c := range menu {
		targets := 0
		if len(c.Menu) > 0 {
			targets++
			if err := d.validateMenu(path+" > "+c.Text, c.Menu); err != nil {
				return err
			}
		}
		if c.CaseList != "" {
			targets++
			if d.CaseLists[c.CaseList] == nil {
				return fmt.Errorf("%s > %s: unknown case list %q", path, c.Text, c.CaseList)
			}
		}
		if c.Form != "" {
			targets++
			if d.Forms[c.Form] == nil {
				return fmt.Errorf("%s > %s: unknown form %q", path, c.Text, c.Form)
			}
		}
		if targets != 1 {
			return fmt.Errorf("%s > %s: want exactly one of menu, case_list or form", path, c.Text)
		}
	}
	return nil
}
