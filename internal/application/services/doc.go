// Package services holds the application layer of TaskDesk:
//   - the in-process EventBus and the dispatcher that feeds it (sync or outbox)
//   - listeners that turn domain events into activity, notifications,
//     webhook deliveries, cache invalidation, automations and stream records
//   - the webhook delivery worker and the cron scheduler
//   - thin state-change services for tasks, deals, clients and users
package services
