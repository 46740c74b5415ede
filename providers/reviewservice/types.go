package reviewservice

import "slr-manager/models"

// Criteria ist ein Auswahlkriterium, wie es der Review-Service ausliefert.
type Criteria struct {
	ID   uint                `json:"id"`
	Text string              `json:"text"`
	Type models.CriteriaType `json:"type"`
}

// Field ist die Definition eines Formularfelds.
type Field struct {
	ID        uint                  `json:"id"`
	Position  int                   `json:"position"`
	Name      string                `json:"name"`
	ValueType models.FieldValueType `json:"value_type"`
}

// FormData ist ein Formular samt Feldern.
type FormData struct {
	ID         uint            `json:"id"`
	ProtocolID uint            `json:"protocol_id"`
	Role       models.FormRole `json:"role"`
	Fields     []Field         `json:"fields"`
}
