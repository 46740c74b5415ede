package models

// ReviewModels sind alle Tabellen der Review-Datenbank.
func ReviewModels() []any {
	return []any{
		&SLR{}, &Researcher{}, &SLRResearcher{}, &Report{},
		&Protocol{}, &Keyword{}, &SelectionCriteria{},
		&DataSource{}, &CustomSource{}, &PredefinedSource{}, &SnowballingSource{},
		&ProtocolKeyword{}, &ProtocolSelectionCriteria{}, &ProtocolDataSource{},
		&Form{}, &FormField{}, &SearchJob{},
	}
}

// SearchModels sind alle Tabellen der Search-Datenbank.
func SearchModels() []any {
	return []any{&Search{}, &Study{}, &FormInstance{}, &FormFieldInstance{}}
}
