package seed

import (
	"errors"
	"strings"

	"github.com/spf13/viper"
)

// File is the YAML setup of one organization: its tree, the shared catalog,
// the recorded selection, user assignments and the periods to generate.
type File struct {
	Organization Organization `mapstructure:"organization"`
	Catalog      Catalog      `mapstructure:"catalog"`
	Selection    *Selection   `mapstructure:"selection"`
	Users        []User       `mapstructure:"users"`
	Periods      []Periods    `mapstructure:"periods"`
}

type Contact struct {
	Address    string `mapstructure:"address"`
	City       string `mapstructure:"city"`
	PostalCode string `mapstructure:"postalCode"`
	Country    string `mapstructure:"country"`
	Phone      string `mapstructure:"phone"`
	Email      string `mapstructure:"email"`
}

type Organization struct {
	Name         string        `mapstructure:"name"`
	Contact      Contact       `mapstructure:"contact"`
	Subdivisions []Subdivision `mapstructure:"subdivisions"`
	Subsidiaries []Subsidiary  `mapstructure:"subsidiaries"`
	Sites        []Site        `mapstructure:"sites"`
}

type Subdivision struct {
	Name     string  `mapstructure:"name"`
	Location string  `mapstructure:"location"`
	Contact  Contact `mapstructure:"contact"`
}

type Subsidiary struct {
	Name        string  `mapstructure:"name"`
	Subdivision string  `mapstructure:"subdivision"`
	Contact     Contact `mapstructure:"contact"`
}

type Site struct {
	Name        string  `mapstructure:"name"`
	Subdivision string  `mapstructure:"subdivision"`
	Subsidiary  string  `mapstructure:"subsidiary"`
	Contact     Contact `mapstructure:"contact"`
}

type Catalog struct {
	Issues     []Issue     `mapstructure:"issues"`
	Criteria   []Criterion `mapstructure:"criteria"`
	Indicators []Indicator `mapstructure:"indicators"`
	Processes  []Process   `mapstructure:"processes"`
}

type Issue struct {
	Code        string `mapstructure:"code"`
	Name        string `mapstructure:"name"`
	Description string `mapstructure:"description"`
}

type Criterion struct {
	Code        string `mapstructure:"code"`
	Name        string `mapstructure:"name"`
	Description string `mapstructure:"description"`
	Issue       string `mapstructure:"issue"`
}

type Indicator struct {
	Code        string `mapstructure:"code"`
	Name        string `mapstructure:"name"`
	Description string `mapstructure:"description"`
	Unit        string `mapstructure:"unit"`
	Type        string `mapstructure:"type"`
	Issue       string `mapstructure:"issue"`
	Criterion   string `mapstructure:"criterion"`
}

type Process struct {
	Code        string   `mapstructure:"code"`
	Name        string   `mapstructure:"name"`
	Description string   `mapstructure:"description"`
	Indicators  []string `mapstructure:"indicators"`
	Criteria    []string `mapstructure:"criteria"`
}

type Selection struct {
	Sector      string   `mapstructure:"sector"`
	EnergyTypes []string `mapstructure:"energyTypes"`
	Standards   []string `mapstructure:"standards"`
	Issues      []string `mapstructure:"issues"`
	Criteria    []string `mapstructure:"criteria"`
	Indicators  []string `mapstructure:"indicators"`
}

type User struct {
	Email     string   `mapstructure:"email"`
	Role      string   `mapstructure:"role"`
	Level     string   `mapstructure:"level"`
	Entity    string   `mapstructure:"entity"`
	Processes []string `mapstructure:"processes"`
}

// Periods generates every period of Type in Year. Closed lists the period
// numbers created already closed.
type Periods struct {
	Year   int    `mapstructure:"year"`
	Type   string `mapstructure:"type"`
	Closed []int  `mapstructure:"closed"`
}

var ErrMissingOrganization = errors.New("setup file has no organization name")

// Load reads a setup file. The format follows the file extension.
func Load(path string) (*File, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("setup file path is required")
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var file File
	if err := v.Unmarshal(&file); err != nil {
		return nil, err
	}
	if strings.TrimSpace(file.Organization.Name) == "" {
		return nil, ErrMissingOrganization
	}
	return &file, nil
}
