// Package subscription reconciles payment provider events into the single
// subscription row each user owns.
//
// Two independent sources report the same facts. The checkout callback
// arrives from the browser once the user completes payment, and the provider
// later delivers signed webhooks at least once and in no guaranteed order.
// Both paths end in [Service], which computes the next state through a fixed
// transition table and writes only when the state actually changes, so
// replays are harmless.
//
// Razorpay is the primary provider:
//
//	gw := subscription.NewRazorpayGateway(cfg)
//	planID, err := gw.PlanID(subscription.ParseBillingCycle("yearly"))
//	if err != nil {
//		// *PlanConfigError: a deployment fault, never a user error
//	}
//	sub, err := gw.CreateSubscription(ctx, subscription.CreateSubscriptionParams{
//		PlanID: planID,
//		Notes:  map[string]string{"userId": userID.String()},
//	})
//
// Webhooks must be verified against the raw request body before parsing:
//
//	if !gw.VerifyWebhookSignature(body, r.Header.Get("x-razorpay-signature")) {
//		// reject with 400
//	}
//	event, err := gw.ParseWebhook(body)
//	err = svc.HandleWebhook(ctx, event)
//
// Paddle is supported as an alternate provider through [PaddleGateway]. Its
// events are normalised into the same [WebhookEvent].
//
// Duplicate deliveries are filtered by a [Deduper] keyed on the provider's
// event id. [RedisDeduper] shares that state across instances; [MemoryDeduper]
// covers single-instance deployments.
package subscription
