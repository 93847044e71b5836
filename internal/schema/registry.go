// Package schema declares the expected columns of every logical table and
// validates rows before they reach the gateway. The remote store enforces
// neither types nor references, so this registry is the single point where
// type and referential integrity are checked.
package schema

import "fmt"

// Logical table names, matching the tabs of the hosted store.
const (
	TableUsers          = "Users"
	TableClients        = "Clients"
	TableClientContacts = "ClientContacts"
	TableInsurance      = "Insurance"
	TablePharmacies     = "Pharmacies"
	TableSubmissionMode = "SubmissionMode"
	TablePortal         = "Portal"
	TableStatus         = "Status"
	TableRemarks        = "Remarks"
	TableData           = "Data"
)

// Column names referenced outside this package.
const (
	ColUsername       = "username"
	ColDisplayName    = "name"
	ColPasswordHash   = "password_hash"
	ColRole           = "role"
	ColClients        = "clients"
	ColClientID       = "ClientID"
	ColClientName     = "ClientName"
	ColTo             = "To"
	ColCC             = "CC"
	ColCode           = "Code"
	ColName           = "Name"
	ColValue          = "Value"
	ColRecordID       = "RecordID"
	ColPharmacyID     = "PharmacyID"
	ColERXNumber      = "ERXNumber"
	ColPatientName    = "PatientName"
	ColInsuranceCode  = "InsuranceCode"
	ColSubmissionDate = "SubmissionDate"
	ColSubmissionMode = "SubmissionMode"
	ColPortal         = "Portal"
	ColNetAmount      = "NetAmount"
	ColStatus         = "Status"
	ColRemarks        = "Remarks"
	ColCreatedBy      = "CreatedBy"
	ColCreatedAt      = "CreatedAt"
	ColUpdatedBy      = "UpdatedBy"
	ColUpdatedAt      = "UpdatedAt"
)

// Type is the value class of a column. All cells travel as strings; the
// type governs what the string must parse as.
type Type string

const (
	TypeString     Type = "string"
	TypeDate       Type = "date"     // 2006-01-02
	TypeDecimal    Type = "decimal"  // parseable float
	TypeTimestamp  Type = "timestamp" // RFC 3339
	TypeRecipients Type = "recipients" // comma-separated address list
)

// Column describes one declared column of a logical table.
type Column struct {
	Name     string
	Type     Type
	Required bool
	// Ref names a reference table whose key column must contain this
	// column's value. Empty means unconstrained.
	Ref string
}

// Definition is the declared shape of one logical table.
type Definition struct {
	Name    string
	// Key is the unique key column used for upsert merging, empty only if
	// the table has no key.
	Key     string
	Columns []Column
	// DupKeys lists the columns forming the duplicate signature of a row.
	// Only the Data table declares them.
	DupKeys []string
}

// Registry holds the definitions of all logical tables.
type Registry struct {
	defs map[string]Definition
}

// NewRegistry builds the registry with the authoritative table shapes.
func NewRegistry() *Registry {
	defs := []Definition{
		{
			Name: TableUsers,
			Key:  ColUsername,
			Columns: []Column{
				{Name: ColUsername, Type: TypeString, Required: true},
				{Name: ColDisplayName, Type: TypeString},
				{Name: ColPasswordHash, Type: TypeString, Required: true},
				{Name: ColRole, Type: TypeString, Required: true},
				{Name: ColClients, Type: TypeString},
			},
		},
		{
			Name: TableClients,
			Key:  ColClientID,
			Columns: []Column{
				{Name: ColClientID, Type: TypeString, Required: true},
				{Name: ColClientName, Type: TypeString, Required: true},
			},
		},
		{
			Name: TableClientContacts,
			Key:  ColClientID,
			Columns: []Column{
				{Name: ColClientID, Type: TypeString, Required: true, Ref: TableClients},
				{Name: ColTo, Type: TypeRecipients},
				{Name: ColCC, Type: TypeRecipients},
			},
		},
		{
			Name: TableInsurance,
			Key:  ColCode,
			Columns: []Column{
				{Name: ColCode, Type: TypeString, Required: true},
				{Name: ColName, Type: TypeString, Required: true},
			},
		},
		valueTable(TablePharmacies),
		valueTable(TableSubmissionMode),
		valueTable(TablePortal),
		valueTable(TableStatus),
		valueTable(TableRemarks),
		{
			Name: TableData,
			Key:  ColRecordID,
			Columns: []Column{
				{Name: ColRecordID, Type: TypeString, Required: true},
				{Name: ColClientID, Type: TypeString, Required: true, Ref: TableClients},
				{Name: ColPharmacyID, Type: TypeString, Ref: TablePharmacies},
				{Name: ColERXNumber, Type: TypeString},
				{Name: ColPatientName, Type: TypeString},
				{Name: ColInsuranceCode, Type: TypeString, Ref: TableInsurance},
				{Name: ColSubmissionDate, Type: TypeDate},
				{Name: ColSubmissionMode, Type: TypeString, Ref: TableSubmissionMode},
				{Name: ColPortal, Type: TypeString, Ref: TablePortal},
				{Name: ColNetAmount, Type: TypeDecimal},
				{Name: ColStatus, Type: TypeString, Required: true, Ref: TableStatus},
				{Name: ColRemarks, Type: TypeString, Ref: TableRemarks},
				{Name: ColCreatedBy, Type: TypeString, Required: true},
				{Name: ColCreatedAt, Type: TypeTimestamp, Required: true},
				{Name: ColUpdatedBy, Type: TypeString},
				{Name: ColUpdatedAt, Type: TypeTimestamp},
			},
			DupKeys: []string{ColERXNumber, ColSubmissionDate, ColNetAmount},
		},
	}
	r := &Registry{defs: make(map[string]Definition, len(defs))}
	for _, d := range defs {
		r.defs[d.Name] = d
	}
	return r
}

// valueTable declares a single-column reference table of allowed values.
func valueTable(name string) Definition {
	return Definition{
		Name: name,
		Key:  ColValue,
		Columns: []Column{
			{Name: ColValue, Type: TypeString, Required: true},
		},
	}
}

// Definition returns the declared shape of a table.
func (r *Registry) Definition(table string) (Definition, bool) {
	d, ok := r.defs[table]
	return d, ok
}

// ColumnsFor returns the ordered column list of a table.
func (r *Registry) ColumnsFor(table string) ([]Column, error) {
	d, ok := r.defs[table]
	if !ok {
		return nil, fmt.Errorf("schema: unknown table %q", table)
	}
	out := make([]Column, len(d.Columns))
	copy(out, d.Columns)
	return out, nil
}

// ColumnOrder returns the declared column names of a table in order.
func (r *Registry) ColumnOrder(table string) []string {
	d, ok := r.defs[table]
	if !ok {
		return nil
	}
	names := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		names[i] = c.Name
	}
	return names
}
