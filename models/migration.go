package models

import (
	"log"

	"github.com/gleamops/fieldops_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&User{}, &Staff{}, &Site{},
		&Route{}, &RouteStop{}, &TravelSegment{},
		&WorkTicket{}, &TicketAssignment{},
		&CalloutEvent{}, &CoverageOffer{},
		&Timesheet{}, &PayrollMapping{}, &PayrollMappingField{},
		&PayrollRun{}, &PayrollRunRow{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
