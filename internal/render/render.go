// Package render substitutes {{ namespace.field }} tokens in agreement
// template bodies. It is a flat substitution pass over a closed token set,
// not a template language: no conditionals, no recursion, no escaping.
package render

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tonglam/vehicle-track-sub000/internal/domain"
)

// Context carries every value a template body may reference. It is built per
// render call from snapshot reads and discarded afterwards.
type Context struct {
	Organisation OrganisationView
	Vehicle      VehicleView
	Inspection   InspectionView
}

type OrganisationView struct {
	Name string
}

type VehicleView struct {
	Make         string
	Model        string
	Year         int
	VIN          string
	LicensePlate string
}

type InspectionView struct {
	Date                time.Time
	ExteriorCondition   string
	InteriorCondition   string
	MechanicalCondition string
}

// NewContext projects the read-only snapshots into the closed token set.
func NewContext(orgName string, v domain.VehicleSnapshot, insp domain.InspectionSnapshot) Context {
	return Context{
		Organisation: OrganisationView{Name: orgName},
		Vehicle: VehicleView{
			Make:         v.Make,
			Model:        v.Model,
			Year:         v.Year,
			VIN:          v.VIN,
			LicensePlate: v.LicensePlate,
		},
		Inspection: InspectionView{
			Date:                insp.Date,
			ExteriorCondition:   insp.ExteriorCondition,
			InteriorCondition:   insp.InteriorCondition,
			MechanicalCondition: insp.MechanicalCondition,
		},
	}
}

var tokenRE = regexp.MustCompile(`\{\{\s*([a-z]+)\.([a-z_]+)\s*\}\}`)

// Render replaces every well-formed token in body with its context value.
// Unrecognized tokens resolve to the empty string; text that does not match
// the token grammar (including unbalanced braces) is left verbatim. Pure and
// deterministic: same (body, ctx) always yields the same output.
func Render(body string, ctx Context) string {
	values := ctx.values()
	return tokenRE.ReplaceAllStringFunc(body, func(m string) string {
		sub := tokenRE.FindStringSubmatch(m)
		return values[sub[1]+"."+sub[2]]
	})
}

// values enumerates the recognized (namespace, field) pairs. Adding a token
// means adding a field to a view struct and a row here, in one place.
func (c Context) values() map[string]string {
	date := ""
	if !c.Inspection.Date.IsZero() {
		date = c.Inspection.Date.Format("2 January 2006")
	}
	year := ""
	if c.Vehicle.Year != 0 {
		year = strconv.Itoa(c.Vehicle.Year)
	}
	return map[string]string{
		"organisation.name":               strings.TrimSpace(c.Organisation.Name),
		"vehicle.make":                    c.Vehicle.Make,
		"vehicle.model":                   c.Vehicle.Model,
		"vehicle.year":                    year,
		"vehicle.vin":                     c.Vehicle.VIN,
		"vehicle.license_plate":           c.Vehicle.LicensePlate,
		"inspection.date":                 date,
		"inspection.exterior_condition":   c.Inspection.ExteriorCondition,
		"inspection.interior_condition":   c.Inspection.InteriorCondition,
		"inspection.mechanical_condition": c.Inspection.MechanicalCondition,
	}
}
