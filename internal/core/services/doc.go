// Package services implements the driving port interfaces.
// Services contain the core sourcing logic and orchestrate
// calls to driven ports (adapters).
//
// Initialisation runs once per process: the schema is fetched, the
// capabilities are discovered, queries are synthesized and compiled with
// the effective fragment set into an immutable SourcingPlan. Each sync
// cycle then decides between a full and a delta pass and hands the plan
// plus change events to a driven.Sourcer.
package services
