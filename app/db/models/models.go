package models

var Models = []interface{}{
	&User{},
	&Record{},
	&Automation{},
	&AutomationRun{},
	&ServiceAccount{},
}
