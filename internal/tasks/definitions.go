package tasks

// DefineTasks registers all available tasks
func DefineTasks() {
	RegisterHandler(LogInfoTask.TaskID(), LogInfoTask.HandleExecution)

	// Reconciliation sweeps
	RegisterHandler(ReconcilePaymentStatusTask.TaskID(), ReconcilePaymentStatusTask.HandleExecution)
	RegisterHandler(CancelStalePaymentsTask.TaskID(), CancelStalePaymentsTask.HandleExecution)
	RegisterHandler(SettlePendingAccountPaymentsTask.TaskID(), SettlePendingAccountPaymentsTask.HandleExecution)
}
