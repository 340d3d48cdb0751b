package types

// PuntoVenta is a point-of-sale row. Ubicacion is EWKT
// ("SRID=4326;POINT(lon lat)") or nil for a NULL geometry; metric pointers
// are nil when the source value was missing.
type PuntoVenta struct {
	ID            string   `gorm:"column:id;primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	Nombre        string   `gorm:"column:nombre;uniqueIndex" json:"nombre"`
	Ubicacion     *string  `gorm:"column:ubicacion;type:geography(Point,4326)" json:"ubicacion"`
	NPS           *float64 `gorm:"column:nps" json:"nps"`
	FillFoundRate *float64 `gorm:"column:fillfoundrate" json:"fillfoundrate"`
	DamageRate    *float64 `gorm:"column:damage_rate" json:"damage_rate"`
	OutOfStock    *float64 `gorm:"column:out_of_stock" json:"out_of_stock"`
}

// TableName binds the model to the existing Supabase table.
func (PuntoVenta) TableName() string { return "puntos_venta" }
