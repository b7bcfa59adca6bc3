package views

import "sensor-fdir/models"

// FileName returns the CSV file name for a sensor class. The recorder writes
// one file per class; the column layout comes from models.AxisRecord.
func FileName(class models.SensorClass) string {
	return class.String() + ".csv"
}

// SchemaColumns is the column list shared by every class file.
var SchemaColumns = models.AxisRecord{}.CSVHeader()
