package config

type WorkerKeyStruct struct {
	PersistQuestionStatsQueue string
}

var WorkerKey = &WorkerKeyStruct{
	PersistQuestionStatsQueue: "persist_question_stats_queue",
}
