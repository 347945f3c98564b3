package config

type WorkerKeyStruct struct {
	PersistSubmissionsQueue string
}

var WorkerKey = &WorkerKeyStruct{
	PersistSubmissionsQueue: "casebook:persist_submissions_queue",
}
