// Package council defines the core data model shared by the review,
// debate, consensus, and adjudication engines.
//
// A WorkflowRun owns everything produced during a session: the proposal
// under review, the rounds of reviewer opinions, detected disagreements,
// debate outcomes, the append-only consensus history, and the single
// adjudication record. Entities are immutable once created; revisions
// produce new values rather than mutating old ones.
//
// # Entity Relationships
//
//	WorkflowRun
//	  └── Proposal (versioned, history retained on revision)
//	  └── Round (one per proposal version)
//	        └── Opinion (one per responding reviewer)
//	        └── Disagreement (detected conflicts between opinions)
//	              └── DebateOutcome (terminal result per disagreement)
//	        └── ConsensusResult (one per round, append-only)
//	  └── AdjudicationRecord (at most one per session)
package council
