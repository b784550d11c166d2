package store

import (
	"context"
	"fmt"
)

// SampleTickets returns the demo dispute tickets loaded by the seed command.
func SampleTickets() []Ticket {
	return []Ticket{
		{Title: "Defective Product - Wireless Headphones", Description: "Customer received wireless headphones that stopped working after 2 days. Requesting full refund of $150.", CustomerEmail: "john.doe@email.com", DisputeValue: 150.00, Category: CategoryProductDefect},
		{Title: "Late Delivery Compensation", Description: "Package was delivered 5 days late for an important event. Customer demands compensation for inconvenience.", CustomerEmail: "sarah.smith@email.com", DisputeValue: 75.00, Category: CategoryShipping},
		{Title: "Unauthorized Charge Dispute", Description: "Customer claims they never authorized a subscription charge of $29.99/month. Requesting immediate refund.", CustomerEmail: "mike.jones@email.com", DisputeValue: 89.97, Category: CategoryBilling},
		{Title: "Service Quality Complaint", Description: "Customer unsatisfied with cleaning service quality. Requesting 50% refund and service redo.", CustomerEmail: "lisa.brown@email.com", DisputeValue: 200.00, Category: CategoryService},
		{Title: "Wrong Item Shipped", Description: "Customer ordered blue shirt size L but received red shirt size M. Wants correct item plus expedited shipping.", CustomerEmail: "david.wilson@email.com", DisputeValue: 45.00, Category: CategoryShipping},
		{Title: "Damaged Goods on Arrival", Description: "Electronics package arrived with visible damage. Customer requesting replacement and shipping refund.", CustomerEmail: "emily.davis@email.com", DisputeValue: 320.00, Category: CategoryProductDefect},
		{Title: "Subscription Cancellation Issue", Description: "Customer tried to cancel subscription but was still charged. Requesting refund for last 3 months.", CustomerEmail: "robert.taylor@email.com", DisputeValue: 147.00, Category: CategoryBilling},
		{Title: "Installation Service Problems", Description: "Technician arrived late and installation was incomplete. Customer wants partial refund and rework.", CustomerEmail: "jennifer.moore@email.com", DisputeValue: 180.00, Category: CategoryService},
		{Title: "Gift Card Balance Dispute", Description: "Customer claims gift card balance disappeared without any purchases. Requesting balance restoration.", CustomerEmail: "chris.anderson@email.com", DisputeValue: 100.00, Category: CategoryBilling},
		{Title: "Event Ticket Cancellation", Description: "Event was cancelled due to weather but customer not offered full refund. Requesting complete reimbursement.", CustomerEmail: "amanda.white@email.com", DisputeValue: 250.00, Category: CategoryService},
		{Title: "Food Delivery Quality Issue", Description: "Food arrived cold and order was incomplete. Customer requesting full refund and future discount.", CustomerEmail: "kevin.martinez@email.com", DisputeValue: 35.00, Category: CategoryService},
		{Title: "Software License Overpayment", Description: "Customer was charged for enterprise license instead of standard license. Requesting price difference refund.", CustomerEmail: "michelle.garcia@email.com", DisputeValue: 890.00, Category: CategoryBilling},
		{Title: "Hotel Reservation Mishap", Description: "Hotel room was double-booked and customer had to find alternative accommodation. Seeking compensation.", CustomerEmail: "daniel.rodriguez@email.com", DisputeValue: 420.00, Category: CategoryService},
		{Title: "Warranty Claim Denial", Description: "Product failed within warranty period but claim was denied. Customer disputing warranty decision.", CustomerEmail: "stephanie.lee@email.com", DisputeValue: 275.00, Category: CategoryProductDefect},
		{Title: "Overcharged Shipping Fees", Description: "Customer was charged express shipping but received standard delivery. Requesting shipping fee refund.", CustomerEmail: "brian.clark@email.com", DisputeValue: 25.00, Category: CategoryShipping},
	}
}

// Seed inserts the sample tickets and returns how many were created.
func Seed(ctx context.Context, s TicketStore) (int, error) {
	created := 0
	for _, t := range SampleTickets() {
		ticket := t
		if err := s.CreateTicket(ctx, &ticket); err != nil {
			return created, fmt.Errorf("seed ticket %q: %w", t.Title, err)
		}
		created++
	}
	return created, nil
}
