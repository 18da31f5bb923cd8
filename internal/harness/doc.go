// Package harness runs end-to-end scenarios against the sync engine.
//
// Each scenario gets a fresh on-disk store, an unreachable connectivity
// classifier, a fake remote, a stepping clock and sequential local ids,
// so identical scenarios produce identical traces.
//
// # Scenario Format
//
//	name: offline_order_stays_pending
//	description: "Reconcile while unreachable changes nothing"
//	setup:
//	  - action: session.save
//	    args: { mode: exclusive, user: { id: u1, permissions: [...] } }
//	flow:
//	  - invoke: orders.queue
//	    args: { order: { companyId: C1, items: [...] } }
//	    expect:
//	      case: ok
//	      result: { synced: false }
//	assertions:
//	  - type: final_state
//	    table: orders
//	    where: { synced: false }
//	    count: 1
//	  - type: reachability
//	    expect: { reachable: false }
//
// # Actions
//
//   - session.save, session.activate, session.logout, session.clear
//   - settings.put
//   - products.merge, products.refresh
//   - batches.put, batches.fifo, batches.deduct
//   - orders.queue, orders.reconcile
//   - network.observe, remote.read, remote.offline, remote.seed, remote.emit
//   - replication.start, replication.stop, notifications.read
//
// # Assertion Types
//
//   - trace_contains: an invocation of action with matching args
//   - trace_order: actions invoked in the given order
//   - trace_count: action invoked exactly count times
//   - final_state: documents of a collection matching where; count and
//     expect are checked against them
//   - reachability: the classifier state
//   - pending_count: the length of the in-memory pending queue
package harness
